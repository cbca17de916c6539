package client

import (
	"encoding/json"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/BaisilG/lego-linux-drivers/pkg/config"
)

// DeviceStatus is the aggregated view of one servo as reported by the
// daemon.
type DeviceStatus struct {
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

func (c *Client) ListDevices() ([]string, error) {
	ret, err := c.Get("/devices")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to list devices")
	}
	var devices []string
	if err := json.Unmarshal([]byte(ret), &devices); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal device list")
	}
	return devices, nil
}

func (c *Client) GetStatus(device string) (*DeviceStatus, error) {
	ret, err := c.Get("/devices/" + device + "/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get status")
	}
	var status DeviceStatus
	if err := json.Unmarshal([]byte(ret), &status); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal status")
	}
	return &status, nil
}

func (c *Client) GetPosition(device string) (int, error) {
	return c.getInt("/devices/"+device+"/position", "position")
}

func (c *Client) SetPosition(device string, position int) (string, error) {
	return c.Put("/devices/"+device+"/position", strconv.Itoa(position))
}

func (c *Client) GetCommand(device string) (string, error) {
	return c.getString("/devices/"+device+"/command", "command")
}

func (c *Client) SetCommand(device string, command string) (string, error) {
	payload, err := json.Marshal(command)
	if err != nil {
		return "", err
	}
	return c.Put("/devices/"+device+"/command", string(payload))
}

func (c *Client) GetPolarity(device string) (string, error) {
	return c.getString("/devices/"+device+"/polarity", "polarity")
}

func (c *Client) SetPolarity(device string, polarity string) (string, error) {
	payload, err := json.Marshal(polarity)
	if err != nil {
		return "", err
	}
	return c.Put("/devices/"+device+"/polarity", string(payload))
}

func (c *Client) GetMinPulseMs(device string) (int, error) {
	return c.getInt("/devices/"+device+"/min-pulse-ms", "min pulse")
}

func (c *Client) SetMinPulseMs(device string, v int) (string, error) {
	return c.Put("/devices/"+device+"/min-pulse-ms", strconv.Itoa(v))
}

func (c *Client) GetMidPulseMs(device string) (int, error) {
	return c.getInt("/devices/"+device+"/mid-pulse-ms", "mid pulse")
}

func (c *Client) SetMidPulseMs(device string, v int) (string, error) {
	return c.Put("/devices/"+device+"/mid-pulse-ms", strconv.Itoa(v))
}

func (c *Client) GetMaxPulseMs(device string) (int, error) {
	return c.getInt("/devices/"+device+"/max-pulse-ms", "max pulse")
}

func (c *Client) SetMaxPulseMs(device string, v int) (string, error) {
	return c.Put("/devices/"+device+"/max-pulse-ms", strconv.Itoa(v))
}

func (c *Client) GetRate(device string) (int, error) {
	return c.getInt("/devices/"+device+"/rate", "rate")
}

func (c *Client) SetRate(device string, ms int) (string, error) {
	return c.Put("/devices/"+device+"/rate", strconv.Itoa(ms))
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	var version string
	if err := json.Unmarshal([]byte(ret), &version); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal version")
	}
	return version, nil
}

func (c *Client) getInt(path, what string) (int, error) {
	ret, err := c.Get(path)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to get %s", what)
	}
	v, err := strconv.Atoi(ret)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return v, nil
}

func (c *Client) getString(path, what string) (string, error) {
	ret, err := c.Get(path)
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get %s", what)
	}
	var s string
	if err := json.Unmarshal([]byte(ret), &s); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return s, nil
}
