package telephony

import (
	"encoding/xml"
	"fmt"
)

// twiml mirrors the TwiML verbs this service emits: a <Connect><Stream> that
// bridges call audio into our websocket endpoint, followed by a spoken
// fallback should the stream not come up.
type twiml struct {
	XMLName xml.Name      `xml:"Response"`
	Connect *twimlConnect `xml:"Connect,omitempty"`
	Say     string        `xml:"Say,omitempty"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL string `xml:"url,attr"`
}

// ConnectStreamTwiML renders the TwiML that connects a call's media stream
// to streamURL (a wss:// endpoint).
func ConnectStreamTwiML(streamURL string) (string, error) {
	doc := twiml{
		Connect: &twimlConnect{Stream: twimlStream{URL: streamURL}},
		Say:     "Connecting to the AI agent. Please wait.",
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("telephony: marshal twiml: %w", err)
	}
	return xml.Header + string(out), nil
}

// ErrorTwiML renders the TwiML spoken when call setup failed.
func ErrorTwiML() string {
	doc := twiml{Say: "We're experiencing technical difficulties. Please try again later."}
	out, err := xml.Marshal(doc)
	if err != nil {
		// A struct of two strings cannot fail to marshal.
		return xml.Header + "<Response></Response>"
	}
	return xml.Header + string(out)
}
