// Package daemon exposes registered servos as read/write attributes over
// HTTP on a unix socket.
package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/BaisilG/lego-linux-drivers/pkg/config"
	"github.com/BaisilG/lego-linux-drivers/pkg/events"
	"github.com/BaisilG/lego-linux-drivers/pkg/maestro"
	"github.com/BaisilG/lego-linux-drivers/pkg/servo"
	"github.com/BaisilG/lego-linux-drivers/pkg/sysfspwm"
)

var (
	registry *servo.Registry
	conf     config.Config
	hub      *events.EventHub
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/devices", getDevices)
	router.GET("/devices/:device/status", getStatus)
	router.GET("/devices/:device/name", getName)
	router.GET("/devices/:device/port-name", getPortName)
	router.GET("/devices/:device/position", getPosition)
	router.PUT("/devices/:device/position", setPosition)
	router.GET("/devices/:device/command", getCommand)
	router.PUT("/devices/:device/command", setCommand)
	router.GET("/devices/:device/polarity", getPolarity)
	router.PUT("/devices/:device/polarity", setPolarity)
	router.GET("/devices/:device/min-pulse-ms", getMinPulseMs)
	router.PUT("/devices/:device/min-pulse-ms", setMinPulseMs)
	router.GET("/devices/:device/mid-pulse-ms", getMidPulseMs)
	router.PUT("/devices/:device/mid-pulse-ms", setMidPulseMs)
	router.GET("/devices/:device/max-pulse-ms", getMaxPulseMs)
	router.PUT("/devices/:device/max-pulse-ms", setMaxPulseMs)
	router.GET("/devices/:device/rate", getRate)
	router.PUT("/devices/:device/rate", setRate)
	router.GET("/config", getConfig)
	router.GET("/version", getVersion)
	router.GET("/events", getEvents)

	return router
}

// openBackend builds the controller backend selected in the config.
func openBackend(conf config.Config) (servo.Backend, error) {
	switch conf.Backend() {
	case config.BackendMock:
		return servo.NewMockBackend("mock-controller", 0), nil
	case config.BackendMaestro:
		return maestro.Open(maestro.Config{
			Device:  conf.Port(),
			Channel: conf.MaestroChannel(),
		})
	case config.BackendPWM:
		return sysfspwm.Open(conf.Port())
	}
	return nil, pkgerrors.Wrapf(servo.ErrInvalidArgument, "unknown backend %q", conf.Backend())
}

// applyCalibration programs the configured pulse bounds into a freshly
// registered servo.
func applyCalibration(s *servo.Servo, conf config.Config) error {
	if err := s.SetMinPulseMs(conf.MinPulseMs()); err != nil {
		return err
	}
	if err := s.SetMidPulseMs(conf.MidPulseMs()); err != nil {
		return err
	}
	return s.SetMaxPulseMs(conf.MaxPulseMs())
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	router := setupRoutes()

	var err error
	conf, err = config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	hub = events.NewEventHub()
	registry = servo.NewRegistry()

	backend, err := openBackend(conf)
	if err != nil {
		logrus.Fatalf("failed to open %s backend: %v", conf.Backend(), err)
	}

	deviceName, s, err := registry.Register(backend, conf.Port())
	if err != nil {
		logrus.Fatalf("failed to register servo: %v", err)
	}
	if err := applyCalibration(s, conf); err != nil {
		logrus.Fatalf("configured calibration is invalid: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"device":  deviceName,
		"command": s.Command(),
	}).Info("servo ready")

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler: router,
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	// Remove power from the motor so it does not fight its load while
	// nothing is in control.
	if err := s.SetCommand(servo.CommandFloat); err != nil {
		logrus.Errorf("failed to float servo before exiting: %v", err)
	}

	if closer, ok := backend.(io.Closer); ok {
		logrus.Info("closing controller connection")
		if err := closer.Close(); err != nil {
			logrus.Errorf("failed to close controller connection: %v", err)
		}
	}

	logrus.Info("exiting")
	return nil
}
