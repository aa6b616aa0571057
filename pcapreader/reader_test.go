package pcapreader_test

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/samaelod/callsim/pcapreader"
	"github.com/samaelod/callsim/types"
)

var captureStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type frame struct {
	at      time.Duration
	port    layers.UDPPort
	payload string
}

func sipMessage(firstLine, cseq, body string, extra ...string) string {
	msg := firstLine + "\r\n" +
		"Via: SIP/2.0/UDP 10.0.0.1:5060;branch=z9hG4bK1\r\n" +
		"From: \"Ada\" <sip:+15550001234@pbx.local>;tag=a1\r\n" +
		"To: <sip:+15550005678@pbx.local>\r\n" +
		"Call-ID: call-abc@pbx.local\r\n" +
		"CSeq: " + cseq + "\r\n"
	for _, h := range extra {
		msg += h + "\r\n"
	}
	return msg + fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body)) + body
}

func sdp(direction string) string {
	return "v=0\r\no=- 1 1 IN IP4 10.0.0.1\r\ns=-\r\nc=IN IP4 10.0.0.1\r\nt=0 0\r\n" +
		"m=audio 4000 RTP/AVP 0\r\na=" + direction + "\r\n"
}

func encode(t *testing.T, f frame) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	udp := &layers.UDP{SrcPort: f.port, DstPort: f.port}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatal(err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(f.payload)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func captureInfo(data []byte, at time.Duration) gopacket.CaptureInfo {
	return gopacket.CaptureInfo{
		Timestamp:      captureStart.Add(at),
		CaptureLength:  len(data),
		Length:         len(data),
		InterfaceIndex: 0,
	}
}

func writePCAP(t *testing.T, frames []frame) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "call.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatal(err)
	}
	for _, fr := range frames {
		data := encode(t, fr)
		if err := w.WritePacket(captureInfo(data, fr.at), data); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func writePCAPNG(t *testing.T, frames []frame) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "call.pcapng")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
	if err != nil {
		t.Fatal(err)
	}
	for _, fr := range frames {
		data := encode(t, fr)
		if err := w.WritePacket(captureInfo(data, fr.at), data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadPCAPFullCall(t *testing.T) {
	frames := []frame{
		{0, 5060, sipMessage("INVITE sip:+15550005678@pbx.local SIP/2.0", "1 INVITE", sdp("sendrecv"))},
		{20 * time.Millisecond, 5060, sipMessage("SIP/2.0 100 Trying", "1 INVITE", "")},
		{50 * time.Millisecond, 53, "not sip at all"},
		{2 * time.Second, 5060, sipMessage("SIP/2.0 200 OK", "1 INVITE", sdp("sendrecv"))},
		{2100 * time.Millisecond, 5060, sipMessage("ACK sip:+15550005678@pbx.local SIP/2.0", "1 ACK", "")},
		{5 * time.Second, 5060, sipMessage("INVITE sip:+15550005678@pbx.local SIP/2.0", "2 INVITE", sdp("sendonly"))},
		{8 * time.Second, 5060, sipMessage("INVITE sip:+15550005678@pbx.local SIP/2.0", "3 INVITE", sdp("sendrecv"))},
		{9 * time.Second, 5060, sipMessage("INFO sip:+15550005678@pbx.local SIP/2.0", "4 INFO", "Signal=5\r\nDuration=160\r\n",
			"Content-Type: application/dtmf-relay")},
		{10 * time.Second, 5060, sipMessage("REFER sip:+15550005678@pbx.local SIP/2.0", "5 REFER", "",
			"Refer-To: <sip:+15550009999@pbx.local>")},
		{12 * time.Second, 5060, sipMessage("BYE sip:+15550005678@pbx.local SIP/2.0", "6 BYE", "")},
		{12100 * time.Millisecond, 5060, sipMessage("BYE sip:+15550005678@pbx.local SIP/2.0", "6 BYE", "")},
	}

	s, err := pcapreader.ReadPCAP(writePCAP(t, frames))
	if err != nil {
		t.Fatalf("ReadPCAP() error = %v", err)
	}

	if s.Globals.Source != "pcap" {
		t.Errorf("Source = %q, want pcap", s.Globals.Source)
	}

	want := []struct {
		typ   types.EventType
		delay int
	}{
		{types.EventCallStart, 0},
		{types.EventCallHold, 5000},
		{types.EventCallResume, 3000},
		{types.EventDTMFReceived, 1000},
		{types.EventCallTransfer, 1000},
		{types.EventCallEnd, 2000},
	}
	if len(s.Events) != len(want) {
		for i, ev := range s.Events {
			t.Logf("event %d: %s delay=%d", i, ev.Type, ev.Delay)
		}
		t.Fatalf("got %d events, want %d", len(s.Events), len(want))
	}
	for i, w := range want {
		if s.Events[i].Type != w.typ || s.Events[i].Delay != w.delay {
			t.Errorf("events[%d] = %s delay=%d, want %s delay=%d", i, s.Events[i].Type, s.Events[i].Delay, w.typ, w.delay)
		}
		if s.Events[i].CallID != "call-abc@pbx.local" {
			t.Errorf("events[%d].CallID = %q", i, s.Events[i].CallID)
		}
	}

	start := s.Events[0]
	if start.From != "+15550001234" || start.To != "+15550005678" || start.State != types.StateRinging {
		t.Errorf("call_start = %+v", start)
	}
	if start.Payload["src"] != "10.0.0.1:5060" || start.Payload["dst"] != "10.0.0.2:5060" {
		t.Errorf("call_start payload = %v", start.Payload)
	}
	if s.Events[3].Payload["digits"] != "5" {
		t.Errorf("dtmf payload = %v", s.Events[3].Payload)
	}
	if s.Events[4].TransferTo != "+15550009999" {
		t.Errorf("TransferTo = %q", s.Events[4].TransferTo)
	}
	if end := s.Events[5]; end.Duration != 10 || end.State != types.StateEnded {
		t.Errorf("call_end = %+v", end)
	}

	if len(s.CallOrder) != 1 || len(s.CallsByID["call-abc@pbx.local"]) != 6 {
		t.Errorf("CallOrder = %q", s.CallOrder)
	}
}

func TestReadPCAPNGCancelledCall(t *testing.T) {
	frames := []frame{
		{0, 5060, sipMessage("INVITE sip:+15550005678@pbx.local SIP/2.0", "1 INVITE", sdp("sendrecv"))},
		{1500 * time.Millisecond, 5060, sipMessage("CANCEL sip:+15550005678@pbx.local SIP/2.0", "1 CANCEL", "")},
	}

	s, err := pcapreader.ReadPCAP(writePCAPNG(t, frames))
	if err != nil {
		t.Fatalf("ReadPCAP() error = %v", err)
	}
	if len(s.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(s.Events))
	}
	if end := s.Events[1]; end.Type != types.EventCallEnd || end.Duration != 0 || end.Delay != 1500 {
		t.Errorf("call_end = %+v", end)
	}
}

func TestReadPCAPErrors(t *testing.T) {
	noSIP := writePCAP(t, []frame{{0, 53, "dns-ish"}})
	if _, err := pcapreader.ReadPCAP(noSIP); !errors.Is(err, pcapreader.ErrNoCalls) {
		t.Errorf("ReadPCAP(no sip) error = %v, want ErrNoCalls", err)
	}

	if _, err := pcapreader.ReadPCAP(filepath.Join(t.TempDir(), "missing.pcap")); err == nil {
		t.Error("ReadPCAP(missing) error = nil")
	}

	garbage := filepath.Join(t.TempDir(), "garbage.pcap")
	if err := os.WriteFile(garbage, []byte("definitely not a capture"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := pcapreader.ReadPCAP(garbage); err == nil {
		t.Error("ReadPCAP(garbage) error = nil")
	}
}
