package webrtc

import (
	"errors"
	"fmt"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpchat/internal/config"
	"github.com/BioHazard786/Warpchat/internal/logging"
	"github.com/BioHazard786/Warpchat/internal/signaling"
	"github.com/BioHazard786/Warpchat/internal/utils"
)

// Label names the single chat data channel.
const Label = "warpchat"

var (
	ErrConnectionFailed = errors.New("webrtc: peer connection failed")
	ErrUnexpectedSignal = errors.New("webrtc: unexpected signal")
	ErrBufferTimeout    = errors.New("webrtc: send buffer not draining")
)

// newAPI builds a pion API whose internal logging goes through slog.
func newAPI() *pion.API {
	se := pion.SettingEngine{LoggerFactory: logging.PionFactory()}
	return pion.NewAPI(pion.WithSettingEngine(se))
}

// iceConfiguration centralizes ICE server configuration. Relay-only policy is
// used when forced or when the host looks like it sits behind a VPN or CGNAT.
func iceConfiguration(cfg *config.Config) pion.Configuration {
	var iceServers []pion.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, pion.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || utils.ShouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}

	return pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

func createDataChannel(pc *pion.PeerConnection) (*pion.DataChannel, error) {
	ordered := true
	dc, err := pc.CreateDataChannel(Label, &pion.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	return dc, nil
}

func createOffer(pc *pion.PeerConnection) (*pion.SessionDescription, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err = pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return pc.LocalDescription(), nil
}

func createAnswer(pc *pion.PeerConnection, offer pion.SessionDescription) (*pion.SessionDescription, error) {
	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("set remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err = pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return pc.LocalDescription(), nil
}

// sessionDescription converts an SDP signal into pion's form.
func sessionDescription(payload signaling.SignalPayload) (pion.SessionDescription, error) {
	switch payload.Type {
	case signaling.SignalOffer:
		return pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: payload.SDP}, nil
	case signaling.SignalAnswer:
		return pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: payload.SDP}, nil
	default:
		return pion.SessionDescription{}, fmt.Errorf("%w: %q", ErrUnexpectedSignal, payload.Type)
	}
}

func descriptionSignal(to string, desc *pion.SessionDescription) (*signaling.Message, error) {
	kind := signaling.SignalOffer
	if desc.Type == pion.SDPTypeAnswer {
		kind = signaling.SignalAnswer
	}
	return signaling.NewSignal(to, signaling.SignalPayload{Type: kind, SDP: desc.SDP})
}
