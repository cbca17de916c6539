package daemon

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/BaisilG/lego-linux-drivers/pkg/config"
	"github.com/BaisilG/lego-linux-drivers/pkg/events"
	"github.com/BaisilG/lego-linux-drivers/pkg/servo"
	"github.com/BaisilG/lego-linux-drivers/pkg/version"
)

// abortWithError maps core errors onto HTTP statuses: range and token
// violations are the caller's fault, a missing optional capability is 501,
// everything else is a controller failure.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, servo.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, servo.ErrUnsupported):
		status = http.StatusNotImplemented
	}
	c.IndentedJSON(status, err.Error())
	_ = c.AbortWithError(status, err)
}

// deviceFromPath resolves the :device path parameter. On failure it
// responds 404 and returns ok=false.
func deviceFromPath(c *gin.Context) (*servo.Servo, string, bool) {
	name := c.Param("device")
	s, ok := registry.Get(name)
	if !ok {
		c.IndentedJSON(http.StatusNotFound, "unknown device "+name)
		c.Abort()
		return nil, name, false
	}
	return s, name, true
}

// publishAttribute tells event subscribers that an attribute write went
// through.
func publishAttribute(device, attribute, value string) {
	hub.Publish(events.AttributeChanged, events.AttributeChangedEvent{
		Device:    device,
		Attribute: attribute,
		Value:     value,
		Ts:        time.Now().Unix(),
	})
}

func getDevices(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, registry.Names())
}

type statusResponse struct {
	Device     string `json:"device"`
	Driver     string `json:"driver"`
	PortName   string `json:"portName"`
	Position   int    `json:"position"`
	Command    string `json:"command"`
	Polarity   string `json:"polarity"`
	MinPulseMs int    `json:"minPulseMs"`
	MidPulseMs int    `json:"midPulseMs"`
	MaxPulseMs int    `json:"maxPulseMs"`
	RateMs     *int   `json:"rateMs,omitempty"`
}

func getStatus(c *gin.Context) {
	s, name, ok := deviceFromPath(c)
	if !ok {
		return
	}

	position, err := s.Position()
	if err != nil {
		logrus.Errorf("getStatus failed: %v", err)
		abortWithError(c, err)
		return
	}

	resp := statusResponse{
		Device:     name,
		Driver:     s.Name(),
		PortName:   s.PortName(),
		Position:   position,
		Command:    string(s.Command()),
		Polarity:   string(s.Polarity()),
		MinPulseMs: s.MinPulseMs(),
		MidPulseMs: s.MidPulseMs(),
		MaxPulseMs: s.MaxPulseMs(),
	}
	if rate, err := s.Rate(); err == nil {
		resp.RateMs = &rate
	} else if !errors.Is(err, servo.ErrUnsupported) {
		logrus.Errorf("getStatus failed: %v", err)
		abortWithError(c, err)
		return
	}

	c.IndentedJSON(http.StatusOK, resp)
}

func getName(c *gin.Context) {
	s, _, ok := deviceFromPath(c)
	if !ok {
		return
	}
	c.IndentedJSON(http.StatusOK, s.Name())
}

func getPortName(c *gin.Context) {
	s, _, ok := deviceFromPath(c)
	if !ok {
		return
	}
	c.IndentedJSON(http.StatusOK, s.PortName())
}

func getPosition(c *gin.Context) {
	s, _, ok := deviceFromPath(c)
	if !ok {
		return
	}

	position, err := s.Position()
	if err != nil {
		logrus.Errorf("getPosition failed: %v", err)
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, position)
}

func setPosition(c *gin.Context) {
	s, name, ok := deviceFromPath(c)
	if !ok {
		return
	}

	var p int
	if err := c.BindJSON(&p); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := s.SetPosition(p, s.Polarity()); err != nil {
		logrus.Errorf("setPosition failed: %v", err)
		abortWithError(c, err)
		return
	}

	logrus.Infof("%s: set position to %d%%", name, p)
	publishAttribute(name, "position", strconv.Itoa(p))
	c.IndentedJSON(http.StatusCreated, "ok")
}

func getCommand(c *gin.Context) {
	s, _, ok := deviceFromPath(c)
	if !ok {
		return
	}
	c.IndentedJSON(http.StatusOK, string(s.Command()))
}

func setCommand(c *gin.Context) {
	s, name, ok := deviceFromPath(c)
	if !ok {
		return
	}

	var raw string
	if err := c.BindJSON(&raw); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	command, err := servo.ParseCommand(raw)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := s.SetCommand(command); err != nil {
		logrus.Errorf("setCommand failed: %v", err)
		abortWithError(c, err)
		return
	}

	logrus.Infof("%s: set command to %s", name, command)
	publishAttribute(name, "command", string(command))
	c.IndentedJSON(http.StatusCreated, "ok")
}

func getPolarity(c *gin.Context) {
	s, _, ok := deviceFromPath(c)
	if !ok {
		return
	}
	c.IndentedJSON(http.StatusOK, string(s.Polarity()))
}

func setPolarity(c *gin.Context) {
	s, name, ok := deviceFromPath(c)
	if !ok {
		return
	}

	var raw string
	if err := c.BindJSON(&raw); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	polarity, err := servo.ParsePolarity(raw)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := s.SetPolarity(polarity); err != nil {
		logrus.Errorf("setPolarity failed: %v", err)
		abortWithError(c, err)
		return
	}

	logrus.Infof("%s: set polarity to %s", name, polarity)
	publishAttribute(name, "polarity", string(polarity))
	c.IndentedJSON(http.StatusCreated, "ok")
}

// setPulseAttr factors the three calibration writes, which differ only in
// which setter they hit.
func setPulseAttr(c *gin.Context, attribute string, set func(*servo.Servo, int) error) {
	s, name, ok := deviceFromPath(c)
	if !ok {
		return
	}

	var v int
	if err := c.BindJSON(&v); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := set(s, v); err != nil {
		logrus.Errorf("set %s failed: %v", attribute, err)
		abortWithError(c, err)
		return
	}

	logrus.Infof("%s: set %s to %d", name, attribute, v)
	publishAttribute(name, attribute, strconv.Itoa(v))
	c.IndentedJSON(http.StatusCreated, "ok")
}

func getMinPulseMs(c *gin.Context) {
	s, _, ok := deviceFromPath(c)
	if !ok {
		return
	}
	c.IndentedJSON(http.StatusOK, s.MinPulseMs())
}

func setMinPulseMs(c *gin.Context) {
	setPulseAttr(c, "min-pulse-ms", (*servo.Servo).SetMinPulseMs)
}

func getMidPulseMs(c *gin.Context) {
	s, _, ok := deviceFromPath(c)
	if !ok {
		return
	}
	c.IndentedJSON(http.StatusOK, s.MidPulseMs())
}

func setMidPulseMs(c *gin.Context) {
	setPulseAttr(c, "mid-pulse-ms", (*servo.Servo).SetMidPulseMs)
}

func getMaxPulseMs(c *gin.Context) {
	s, _, ok := deviceFromPath(c)
	if !ok {
		return
	}
	c.IndentedJSON(http.StatusOK, s.MaxPulseMs())
}

func setMaxPulseMs(c *gin.Context) {
	setPulseAttr(c, "max-pulse-ms", (*servo.Servo).SetMaxPulseMs)
}

func getRate(c *gin.Context) {
	s, _, ok := deviceFromPath(c)
	if !ok {
		return
	}

	rate, err := s.Rate()
	if err != nil {
		logrus.Errorf("getRate failed: %v", err)
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, rate)
}

func setRate(c *gin.Context) {
	s, name, ok := deviceFromPath(c)
	if !ok {
		return
	}

	var v int
	if err := c.BindJSON(&v); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := s.SetRate(v); err != nil {
		logrus.Errorf("setRate failed: %v", err)
		abortWithError(c, err)
		return
	}

	logrus.Infof("%s: set rate to %d ms", name, v)
	publishAttribute(name, "rate", strconv.Itoa(v))
	c.IndentedJSON(http.StatusCreated, "ok")
}

func getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

func getEvents(c *gin.Context) {
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(_ io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
