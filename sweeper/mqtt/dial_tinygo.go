//go:build tinygo

package mqtt

import (
	"errors"
	"log/slog"
	"net/netip"
	"runtime"
	"time"

	"github.com/harveysanders/picosweep/sweeper/cyw43439"
	"github.com/harveysanders/picosweep/sweeper/lcd"
	"github.com/soypat/lneto/tcp"
)

// ConnectAndPublish dials addr over the board's network stack and publishes
// every payload from events. It reconnects forever and only returns on a
// configuration error.
func (s *Session) ConnectAndPublish(
	stack *cyw43439.Stack,
	addr string,
	tcpBufSize int,
	events <-chan []byte,
	lcdMessages chan<- lcd.Message,
) error {
	const pollTime = 5 * time.Millisecond
	logger := s.logger()

	host, portStr, err := SplitHostPort(addr)
	if err != nil {
		return errors.New("parsing host:port from " + addr + ": " + err.Error())
	}
	port := ParsePort(portStr)
	if port == 0 {
		return errors.New("invalid port in " + addr)
	}

	lnetoStack := stack.LnetoStack()
	rstack := lnetoStack.StackRetrying(pollTime)

	var brokerAddr netip.Addr
	if parsed, err := netip.ParseAddr(host); err == nil {
		brokerAddr = parsed
	} else {
		logger.Info("dns:resolving " + host)
		addrs, err := rstack.DoLookupIP(host, 5*time.Second, 3)
		if err != nil {
			return errors.New("dns lookup for " + host + ": " + err.Error())
		}
		if len(addrs) == 0 {
			return errors.New("dns lookup for " + host + ": no addresses returned")
		}
		brokerAddr = addrs[0]
	}
	logger.Info("mqtt:broker", slog.String("addr", brokerAddr.String()))

	var conn tcp.Conn
	err = conn.Configure(tcp.ConnConfig{
		RxBuf:             make([]byte, tcpBufSize),
		TxBuf:             make([]byte, tcpBufSize),
		TxPacketQueueSize: 3,
	})
	if err != nil {
		return errors.New("tcp configure:" + err.Error())
	}

	closeConn := func(reason string) {
		logger.Error("tcpconn:closing", slog.String("reason", reason))
		conn.Close()
		for i := 0; i < 50 && !conn.State().IsClosed(); i++ {
			time.Sleep(100 * time.Millisecond)
		}
		conn.Abort()
	}

	serverAddr := netip.AddrPortFrom(brokerAddr, port)
	for {
		localPort := uint16(stack.Prand32()>>17) + 1024
		logger.Info("socket:dialing", slog.Uint64("localPort", uint64(localPort)))
		lcd.Send(lcdMessages, "MQTT dialing", addr)

		err = rstack.DoDialTCP(&conn, localPort, serverAddr, 10*time.Second, 3)
		if err != nil {
			logger.Error("socket:dial-failed", slog.String("err", err.Error()))
			closeConn("dial failed: " + err.Error())
			time.Sleep(2 * time.Second)
			continue
		}
		logger.Info("tcp:connected", slog.String("state", conn.State().String()))

		if err = s.Connect(&conn); err != nil {
			logger.Error("mqtt:connect-failed", slog.String("err", err.Error()))
			lcd.Send(lcdMessages, "MQTT failed", err.Error())
			closeConn("connect failed")
			continue
		}
		lcd.Send(lcdMessages, "MQTT connected", s.Topic)

		for s.Connected() {
			select {
			case payload := <-events:
				if err := s.Publish(payload); err != nil {
					logger.Error("mqtt:publish-failed", slog.String("err", err.Error()))
				}
			default:
				// TinyGo schedules cooperatively on one core.
				runtime.Gosched()
			}
		}

		logger.Error("mqtt:disconnected", slog.Any("reason", s.client.Err()))
		lcd.Send(lcdMessages, "Disconnected", "Reconnecting...")
		s.conn, s.client = nil, nil
		closeConn("disconnected")
		runtime.Gosched()
	}
}
