package pcapreader

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/samaelod/callsim/types"
)

var (
	sipUserRegex = regexp.MustCompile(`sips?:([^@;>]+)`)
	dtmfRegex    = regexp.MustCompile(`(?mi)^Signal\s*=\s*(\S+)`)

	sipStartLines = [][]byte{
		[]byte("INVITE "), []byte("ACK "), []byte("BYE "), []byte("CANCEL "),
		[]byte("REFER "), []byte("INFO "), []byte("OPTIONS "), []byte("REGISTER "),
		[]byte("NOTIFY "), []byte("UPDATE "), []byte("PRACK "), []byte("SIP/2.0 "),
	}
)

// ErrNoCalls is returned for captures without any SIP call signalling.
var ErrNoCalls = errors.New("no SIP calls found in capture")

type packetSource interface {
	LinkType() layers.LinkType
	ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error)
}

func detectFormat(path string) (format string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	// Read first 4 bytes to check magic
	header := make([]byte, 4)
	n, err := io.ReadFull(file, header)
	if err != nil || n < 4 {
		return "pcap", nil // Default to pcap
	}

	// PCAPNG starts with a Section Header Block, 0x0A0D0D0A
	magic := uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16 | uint32(header[3])<<24
	if magic == 0x0A0D0D0A {
		return "pcapng", nil
	}

	return "pcap", nil
}

type captureFile struct {
	packetSource
	file *os.File
}

func openPacketSource(path string) (*captureFile, error) {
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var src packetSource
	if format == "pcapng" {
		src, err = pcapgo.NewNgReader(file, pcapgo.DefaultNgReaderOptions)
	} else {
		src, err = pcapgo.NewReader(file)
	}
	if err != nil {
		file.Close()
		return nil, err
	}
	return &captureFile{packetSource: src, file: file}, nil
}

// ReadPCAP converts the SIP signalling in a capture into a replay script.
// Delays come from the capture timestamps between emitted steps.
func ReadPCAP(path string) (*types.Script, error) {
	source, err := openPacketSource(path)
	if err != nil {
		return nil, err
	}
	defer source.file.Close()

	conv := newConverter()

	packetSrc := gopacket.NewPacketSource(source, source.LinkType())
	for packet := range packetSrc.Packets() {
		src, dst, payload, ok := transportPayload(packet)
		if !ok || !looksLikeSIP(payload) {
			continue
		}

		msg := layers.NewSIP()
		if err := msg.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
			continue
		}

		conv.handle(msg, sipBody(payload), src, dst, packet.Metadata().Timestamp)
	}

	if len(conv.script.Events) == 0 {
		return nil, ErrNoCalls
	}

	conv.script.IndexCalls()
	return conv.script, nil
}

// transportPayload returns the UDP or TCP payload of a packet and its
// endpoints as ip:port strings.
func transportPayload(packet gopacket.Packet) (src, dst string, payload []byte, ok bool) {
	netLayer := packet.NetworkLayer()
	if netLayer == nil {
		return "", "", nil, false
	}

	// Extract IP addresses properly based on layer type
	var srcIP, dstIP string
	if ipv4, ok := netLayer.(*layers.IPv4); ok {
		srcIP = ipv4.SrcIP.String()
		dstIP = ipv4.DstIP.String()
	} else if ipv6, ok := netLayer.(*layers.IPv6); ok {
		srcIP = ipv6.SrcIP.String()
		dstIP = ipv6.DstIP.String()
	} else {
		srcIP = netLayer.NetworkFlow().Src().String()
		dstIP = netLayer.NetworkFlow().Dst().String()
	}

	var srcPort, dstPort int
	if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp := udpLayer.(*layers.UDP)
		srcPort, dstPort, payload = int(udp.SrcPort), int(udp.DstPort), udp.Payload
	} else if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp := tcpLayer.(*layers.TCP)
		srcPort, dstPort, payload = int(tcp.SrcPort), int(tcp.DstPort), tcp.Payload
	} else {
		return "", "", nil, false
	}

	src = net.JoinHostPort(srcIP, strconv.Itoa(srcPort))
	dst = net.JoinHostPort(dstIP, strconv.Itoa(dstPort))
	return src, dst, payload, len(payload) > 0
}

func looksLikeSIP(payload []byte) bool {
	for _, prefix := range sipStartLines {
		if bytes.HasPrefix(payload, prefix) {
			return true
		}
	}
	return false
}

func sipBody(payload []byte) string {
	if i := bytes.Index(payload, []byte("\r\n\r\n")); i >= 0 {
		return string(payload[i+4:])
	}
	return ""
}

// sipUser extracts the user part of a From/To/Refer-To header value,
// e.g. "Ada" <sip:+15550001234@pbx.local>;tag=1 -> +15550001234.
func sipUser(header string) string {
	if m := sipUserRegex.FindStringSubmatch(header); m != nil {
		return m[1]
	}
	return strings.TrimSpace(header)
}

type callTrack struct {
	started  time.Time
	answered time.Time
	onHold   bool
	ended    bool
}

type converter struct {
	script   *types.Script
	calls    map[string]*callTrack
	prevTime time.Time
}

func newConverter() *converter {
	return &converter{
		script: &types.Script{
			Globals: types.Globals{Source: "pcap"},
		},
		calls: make(map[string]*callTrack),
	}
}

func (c *converter) handle(msg *layers.SIP, body, src, dst string, ts time.Time) {
	callID := msg.GetCallID()
	if callID == "" {
		return
	}
	call := c.calls[callID]

	if msg.IsResponse {
		// A 2xx to the initial INVITE marks the call answered.
		if call != nil && call.answered.IsZero() && msg.ResponseCode >= 200 && msg.ResponseCode < 300 &&
			strings.Contains(strings.ToUpper(msg.GetFirstHeader("cseq")), "INVITE") {
			call.answered = ts
		}
		return
	}

	switch msg.Method {
	case layers.SIPMethodInvite:
		if call == nil {
			c.calls[callID] = &callTrack{started: ts}
			c.emit(ts, types.EventCallStart, types.EventFields{
				CallID:    callID,
				From:      sipUser(msg.GetFrom()),
				To:        sipUser(msg.GetTo()),
				Direction: types.DirectionInbound,
				State:     types.StateRinging,
				Payload:   map[string]any{"src": src, "dst": dst},
			})
			return
		}
		if call.ended {
			return
		}
		switch {
		case !call.onHold && holdsMedia(body):
			call.onHold = true
			c.emit(ts, types.EventCallHold, types.EventFields{CallID: callID, State: types.StateOnHold})
		case call.onHold && body != "" && !holdsMedia(body):
			call.onHold = false
			c.emit(ts, types.EventCallResume, types.EventFields{CallID: callID, State: types.StateConnected})
		}

	case layers.SIPMethodRefer:
		if call == nil || call.ended {
			return
		}
		c.emit(ts, types.EventCallTransfer, types.EventFields{
			CallID:     callID,
			State:      types.StateTransferred,
			TransferTo: sipUser(msg.GetFirstHeader("refer-to")),
		})

	case layers.SIPMethodInfo:
		if call == nil || call.ended {
			return
		}
		digits := dtmfDigits(body)
		if digits == "" {
			return
		}
		c.emit(ts, types.EventDTMFReceived, types.EventFields{
			CallID:  callID,
			State:   types.StateConnected,
			Payload: map[string]any{"digits": digits},
		})

	case layers.SIPMethodBye, layers.SIPMethodCancel:
		if call == nil || call.ended {
			return
		}
		call.ended = true
		duration := 0
		if !call.answered.IsZero() {
			duration = int(ts.Sub(call.answered).Seconds())
		}
		c.emit(ts, types.EventCallEnd, types.EventFields{
			CallID:   callID,
			State:    types.StateEnded,
			Duration: duration,
		})
	}
}

func (c *converter) emit(ts time.Time, t types.EventType, fields types.EventFields) {
	delay := 0
	if !c.prevTime.IsZero() {
		delay = int(ts.Sub(c.prevTime).Milliseconds())
	}
	c.prevTime = ts

	c.script.Events = append(c.script.Events, types.ScriptedEvent{
		Type:        t,
		EventFields: fields,
		Delay:       delay,
	})
}

// holdsMedia reports an SDP body that puts the stream on hold.
func holdsMedia(body string) bool {
	return strings.Contains(body, "a=sendonly") || strings.Contains(body, "a=inactive")
}

func dtmfDigits(body string) string {
	if m := dtmfRegex.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return strings.TrimSpace(body)
}
