// Package wsapi is the JSON command/message protocol exposed to a single
// websocket client, in the tagged-union shape of dividat-driver's
// protocol/main.go and util/websocket packages.
package wsapi

import (
	"encoding/json"
	"errors"
)

// Command sent by a client. Exactly one embedded pointer is non-nil.
type Command struct {
	*GetStatus
	*Connect
	*Disconnect
	*StartScan
	*StopScan
	*GrabScan
	*SetIntensities
}

// GetStatus asks for the current connected/scanning state.
type GetStatus struct{}

// Connect opens the serial link.
type Connect struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baudRate"`
}

// Disconnect closes the serial link.
type Disconnect struct{}

// StartScan begins a rotation.
type StartScan struct {
	Force bool `json:"force"`
}

// StopScan halts the pump.
type StopScan struct{}

// GrabScan requests the latest completed rotation.
type GrabScan struct {
	TimeoutMS int `json:"timeoutMs"`
}

// SetIntensities toggles intensity mode.
type SetIntensities struct {
	On bool `json:"on"`
}

func prettyPrintCommand(command Command) string {
	switch {
	case command.GetStatus != nil:
		return "GetStatus"
	case command.Connect != nil:
		return "Connect"
	case command.Disconnect != nil:
		return "Disconnect"
	case command.StartScan != nil:
		return "StartScan"
	case command.StopScan != nil:
		return "StopScan"
	case command.GrabScan != nil:
		return "GrabScan"
	case command.SetIntensities != nil:
		return "SetIntensities"
	default:
		return "Unknown"
	}
}

// UnmarshalJSON implements encoding/json Unmarshaler, dispatching on a
// "type" discriminator field the way protocol.Command does.
func (command *Command) UnmarshalJSON(data []byte) error {
	temp := struct {
		Type string `json:"type"`
	}{}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	switch temp.Type {
	case "GetStatus":
		command.GetStatus = &GetStatus{}
	case "Connect":
		return json.Unmarshal(data, &command.Connect)
	case "Disconnect":
		command.Disconnect = &Disconnect{}
	case "StartScan":
		return json.Unmarshal(data, &command.StartScan)
	case "StopScan":
		command.StopScan = &StopScan{}
	case "GrabScan":
		return json.Unmarshal(data, &command.GrabScan)
	case "SetIntensities":
		return json.Unmarshal(data, &command.SetIntensities)
	default:
		return errors.New("wsapi: cannot decode unknown command type " + temp.Type)
	}
	return nil
}

// Message sent to the client in response to a Command.
type Message struct {
	*Status
	*ScanData
	*Failure
}

// Status reports connected/scanning state.
type Status struct {
	Connected bool    `json:"connected"`
	Scanning  bool    `json:"scanning"`
	Address   *string `json:"address,omitempty"`
}

// ScanData carries one rotation's worth of samples, already ascended.
type ScanData struct {
	Angles     []float64 `json:"angles"`
	DistancesM []float64 `json:"distancesM"`
	Qualities  []byte    `json:"qualities"`
}

// Failure reports an operation that returned an error.
type Failure struct {
	Message string `json:"message"`
}

// MarshalJSON implements encoding/json Marshaler, tagging the payload with
// a "type" discriminator the way protocol.Message does.
func (message *Message) MarshalJSON() ([]byte, error) {
	switch {
	case message.Status != nil:
		return json.Marshal(&struct {
			Type string `json:"type"`
			*Status
		}{Type: "Status", Status: message.Status})

	case message.ScanData != nil:
		return json.Marshal(&struct {
			Type string `json:"type"`
			*ScanData
		}{Type: "ScanData", ScanData: message.ScanData})

	case message.Failure != nil:
		return json.Marshal(&struct {
			Type string `json:"type"`
			*Failure
		}{Type: "Failure", Failure: message.Failure})
	}

	return nil, errors.New("wsapi: could not marshal message")
}
