package main

import (
	"encoding/xml"

	"github.com/round-cube/parking-pay/menu"
)

const (
	ivrVoice  = "Polly.Joanna"
	ivrAction = "/twilio/ivr/"
)

type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Gather  *twimlGather `xml:"Gather,omitempty"`
	Says    []twimlSay   `xml:"Say,omitempty"`
	Hangup  *struct{}    `xml:"Hangup,omitempty"`
}

type twimlGather struct {
	NumDigits int        `xml:"numDigits,attr"`
	Action    string     `xml:"action,attr"`
	Method    string     `xml:"method,attr"`
	Says      []twimlSay `xml:"Say"`
}

type twimlSay struct {
	Voice string `xml:"voice,attr"`
	Text  string `xml:",chardata"`
}

func says(lines []string) []twimlSay {
	out := make([]twimlSay, 0, len(lines))
	for _, l := range lines {
		out = append(out, twimlSay{Voice: ivrVoice, Text: l})
	}
	return out
}

// renderTwiML gathers one digit while the menu continues and hangs up once it ends.
func renderTwiML(resp menu.Response) ([]byte, error) {
	doc := twimlResponse{}
	if resp.Continue {
		doc.Gather = &twimlGather{NumDigits: 1, Action: ivrAction, Method: "POST", Says: says(resp.Lines)}
	} else {
		doc.Says = says(resp.Lines)
		doc.Hangup = &struct{}{}
	}
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
