package wsapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/dividat/lidar-driver/internal/lidar"
	"github.com/dividat/lidar-driver/internal/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handle serves the lidar driver's command protocol over a websocket
// connection, in the shape of dividat-driver's util/websocket handlers:
// one goroutine reading client commands, dispatching each directly
// against the Driver, and writing back a single reply Message.
type Handle struct {
	driver *lidar.Driver
	log    *logrus.Entry

	address *string
}

// NewHandle wraps a Driver for websocket exposure.
func NewHandle(driver *lidar.Driver, log *logrus.Entry) *Handle {
	return &Handle{driver: driver, log: log}
}

func (h *Handle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log.WithFields(logrus.Fields{
		"clientAddress": r.RemoteAddr,
		"userAgent":     r.UserAgent(),
	})

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("error", err).Info("Failed to upgrade to websocket.")
		return
	}
	defer conn.Close()

	for {
		var command Command
		if err := conn.ReadJSON(&command); err != nil {
			log.WithField("error", err).Debug("Closing websocket connection.")
			return
		}

		log.WithField("command", prettyPrintCommand(command)).Debug("Received command.")

		reply := h.handle(command)
		if err := conn.WriteJSON(&reply); err != nil {
			log.WithField("error", err).Debug("Failed to write reply, closing connection.")
			return
		}
	}
}

func (h *Handle) handle(command Command) Message {
	switch {
	case command.GetStatus != nil:
		return Message{Status: h.status()}

	case command.Connect != nil:
		if err := h.driver.Connect(command.Connect.Port, command.Connect.BaudRate); err != nil {
			return failureMessage(err)
		}
		h.address = util.PointerTo(command.Connect.Port)
		return Message{Status: h.status()}

	case command.Disconnect != nil:
		if err := h.driver.Disconnect(); err != nil {
			return failureMessage(err)
		}
		h.address = nil
		return Message{Status: h.status()}

	case command.StartScan != nil:
		if err := h.driver.StartScan(command.StartScan.Force, lidar.DefaultTimeout); err != nil {
			return failureMessage(err)
		}
		return Message{Status: h.status()}

	case command.StopScan != nil:
		if err := h.driver.Stop(); err != nil {
			return failureMessage(err)
		}
		return Message{Status: h.status()}

	case command.GrabScan != nil:
		timeout := lidar.DefaultTimeout
		if command.GrabScan.TimeoutMS > 0 {
			timeout = time.Duration(command.GrabScan.TimeoutMS) * time.Millisecond
		}
		nodes, err := h.driver.GrabScanData(timeout)
		if err != nil {
			return failureMessage(err)
		}
		return Message{ScanData: scanDataMessage(lidar.AscendScanData(nodes))}

	case command.SetIntensities != nil:
		if err := h.driver.SetIntensities(command.SetIntensities.On); err != nil {
			return failureMessage(err)
		}
		return Message{Status: h.status()}

	default:
		return failureMessage(fmt.Errorf("wsapi: unrecognized command"))
	}
}

func (h *Handle) status() *Status {
	return &Status{
		Connected: h.driver.IsConnected(),
		Scanning:  h.driver.IsScanning(),
		Address:   h.address,
	}
}

func failureMessage(err error) Message {
	return Message{Failure: &Failure{Message: err.Error()}}
}

func scanDataMessage(nodes []lidar.Node) *ScanData {
	points := lidar.ToPolar(nodes)
	msg := &ScanData{
		Angles:     make([]float64, len(points)),
		DistancesM: make([]float64, len(points)),
		Qualities:  make([]byte, len(points)),
	}
	for i, p := range points {
		msg.Angles[i] = p.AngleRadians
		msg.DistancesM[i] = p.DistanceM
		msg.Qualities[i] = p.Quality
	}
	return msg
}
