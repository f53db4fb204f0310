//go:build tinygo

package colorhttp

import (
	"errors"
	"log/slog"
	"time"

	"github.com/harveysanders/picosweep/sweeper/cyw43439"
	"github.com/soypat/lneto/tcp"
)

const connTimeout = 5 * time.Second

// ListenAndServe accepts one connection at a time on port and answers a
// single request per connection. It only returns on setup errors.
func (s *Server) ListenAndServe(stack *cyw43439.Stack, port uint16, tcpBufSize int) error {
	logger := s.logger()

	var conn tcp.Conn
	err := conn.Configure(tcp.ConnConfig{
		RxBuf:             make([]byte, tcpBufSize),
		TxBuf:             make([]byte, tcpBufSize),
		TxPacketQueueSize: 3,
	})
	if err != nil {
		return errors.New("tcp configure:" + err.Error())
	}

	lstack := stack.LnetoStack()
	logger.Info("http:listening", slog.String("addr", stack.Addr().String()), slog.Uint64("port", uint64(port)))
	for {
		if err := lstack.ListenTCP(&conn, port); err != nil {
			logger.Error("http:listen-failed", slog.String("err", err.Error()))
			time.Sleep(time.Second)
			continue
		}
		for conn.State() != tcp.StateEstablished {
			if conn.State().IsClosed() {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		if conn.State() != tcp.StateEstablished {
			conn.Abort()
			continue
		}

		conn.SetDeadline(time.Now().Add(connTimeout))
		if err := s.ServeConn(&conn); err != nil {
			logger.Error("http:serve-failed", slog.String("err", err.Error()))
		}
		conn.Close()
		for i := 0; i < 50 && !conn.State().IsClosed(); i++ {
			time.Sleep(20 * time.Millisecond)
		}
		conn.Abort()
	}
}
