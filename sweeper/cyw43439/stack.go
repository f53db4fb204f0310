//go:build tinygo

// Package cyw43439 brings up WiFi on the Pico W and exposes the lneto stack
// used by the HTTP and MQTT outputs.
//
// Adapted from the soypat/cyw43439 examples:
// https://github.com/soypat/cyw43439/tree/main/examples/common
package cyw43439

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/lneto/x/xnet"
)

const mtu = cyw43439.MTU

// StackConfig configures the lneto stack.
type StackConfig struct {
	// Hostname is used for DHCP requests.
	Hostname string
	// MaxTCPPorts is the number of TCP connections the stack can hold.
	MaxTCPPorts int
	Logger      *slog.Logger
	RandSeed    int64
}

// DHCPConfig configures the DHCP request.
type DHCPConfig struct {
	// RequestedAddr is used as a static IP if DHCP fails.
	RequestedAddr netip.Addr
}

// Stack wraps the lneto StackAsync and the CYW43439 device.
type Stack struct {
	s       xnet.StackAsync
	dev     *cyw43439.Device
	log     *slog.Logger
	sendbuf []byte
}

// NewStack initializes the radio chip, joins ssid and prepares the network
// stack. Join failures are retried every five seconds.
func NewStack(ssid, pass string, cfg StackConfig) (*Stack, error) {
	if cfg.Hostname == "" {
		return nil, errors.New("empty hostname")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}

	start := time.Now()
	dev := cyw43439.NewPicoWDevice()
	dev.SetLogger(logger)

	logger.Info("wifi:init")
	if err := dev.Init(cyw43439.DefaultWifiConfig()); err != nil {
		return nil, errors.New("wifi init failed:" + err.Error())
	}
	logger.Info("cyw43439:Init", slog.Duration("duration", time.Since(start)))

	if len(pass) == 0 {
		logger.Info("wifi:joining open network", slog.String("ssid", ssid))
	} else {
		logger.Info("wifi:joining WPA network", slog.String("ssid", ssid), slog.Int("passlen", len(pass)))
	}
	for {
		err := dev.JoinWPA2(ssid, pass)
		if err == nil {
			break
		}
		logger.Error("wifi:join-failed", slog.String("err", err.Error()))
		time.Sleep(5 * time.Second)
	}

	mac, err := dev.HardwareAddr6()
	if err != nil {
		return nil, errors.New("get hardware address:" + err.Error())
	}
	logger.Info("wifi:joined", slog.String("mac", net.HardwareAddr(mac[:]).String()))

	stack := &Stack{
		dev:     dev,
		log:     logger,
		sendbuf: make([]byte, mtu),
	}
	maxTCP := cfg.MaxTCPPorts
	if maxTCP < 1 {
		maxTCP = 1
	}
	err = stack.s.Reset(xnet.StackConfig{
		Hostname:        cfg.Hostname,
		MaxTCPConns:     maxTCP,
		RandSeed:        time.Since(start).Nanoseconds() ^ cfg.RandSeed,
		HardwareAddress: mac,
		MTU:             mtu,
	})
	if err != nil {
		return nil, errors.New("stack reset:" + err.Error())
	}

	dev.RecvEthHandle(func(pkt []byte) error {
		return stack.s.Demux(pkt, 0)
	})
	return stack, nil
}

// SetupWithDHCP requests an address, falling back to cfg.RequestedAddr as a
// static IP when the server does not answer.
func (s *Stack) SetupWithDHCP(cfg DHCPConfig) (*xnet.DHCPResults, error) {
	if !cfg.RequestedAddr.IsValid() {
		cfg.RequestedAddr = netip.AddrFrom4([4]byte{})
	} else if !cfg.RequestedAddr.Is4() {
		return nil, errors.New("only dhcpv4 supported")
	}

	rstack := s.s.StackRetrying(50 * time.Millisecond)
	s.log.Info("DHCP:starting")
	results, err := rstack.DoDHCPv4(cfg.RequestedAddr.As4(), 3*time.Second, 3)
	if err != nil {
		if !cfg.RequestedAddr.IsUnspecified() {
			s.log.Info("DHCP:static fallback", slog.String("ip", cfg.RequestedAddr.String()))
			s.s.SetIPAddr(cfg.RequestedAddr)
			return &xnet.DHCPResults{AssignedAddr: cfg.RequestedAddr}, nil
		}
		return nil, errors.New("dhcp failed:" + err.Error())
	}
	if err = s.s.AssimilateDHCPResults(results); err != nil {
		return nil, errors.New("assimilate dhcp:" + err.Error())
	}

	gatewayHW, err := rstack.DoResolveHardwareAddress6(results.Router, 500*time.Millisecond, 4)
	if err != nil {
		return nil, errors.New("resolve gateway:" + err.Error())
	}
	s.s.SetGateway6(gatewayHW)

	s.log.Info("DHCP:complete",
		slog.String("ourIP", results.AssignedAddr.String()),
		slog.String("router", results.Router.String()),
		slog.Uint64("lease_sec", uint64(results.TLease)),
	)
	return results, nil
}

// RecvAndSend moves one batch of packets in each direction. Call it in a
// loop from its own goroutine.
func (s *Stack) RecvAndSend() (send, recv int, err error) {
	gotPacket, errRecv := s.dev.PollOne()
	if gotPacket {
		recv = 1
	}
	if errRecv != nil {
		s.log.Error("RecvAndSend:PollOne", slog.String("err", errRecv.Error()))
	}

	send, err = s.s.Encapsulate(s.sendbuf, -1, 0)
	if err != nil {
		s.log.Error("RecvAndSend:Encapsulate", slog.Int("plen", send), slog.String("err", err.Error()))
	} else {
		err = errRecv
	}
	if send == 0 {
		return send, recv, err
	}

	err = s.dev.SendEth(s.sendbuf[:send])
	if err != nil {
		s.log.Error("RecvAndSend:SendEth", slog.Int("plen", send), slog.String("err", err.Error()))
	}
	return send, recv, err
}

// PollForever runs RecvAndSend, backing off briefly when idle.
func (s *Stack) PollForever() {
	for {
		send, recv, _ := s.RecvAndSend()
		if send == 0 && recv == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// SetLED drives the on-board LED, which hangs off the wireless chip.
func (s *Stack) SetLED(on bool) error {
	return s.dev.GPIOSet(0, on)
}

// LnetoStack returns the underlying stack for TCP and DNS operations.
func (s *Stack) LnetoStack() *xnet.StackAsync {
	return &s.s
}

func (s *Stack) Prand32() uint32 {
	return s.s.Prand32()
}

// Addr returns the current IP address of the stack.
func (s *Stack) Addr() netip.Addr {
	return s.s.Addr()
}
