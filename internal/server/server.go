package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tarasyarema/interviewer/internal/relay"
	"github.com/tarasyarema/interviewer/pkg/log"
	"github.com/tarasyarema/interviewer/pkg/metrics"
	"github.com/tarasyarema/interviewer/pkg/util/conc"
	"github.com/tarasyarema/interviewer/pkg/util/merr"
)

// Subprotocol 为握手时声明的 WebSocket 子协议名。
const Subprotocol = "interviewer"

// Config 为服务器的监听配置。
type Config struct {
	// Bind 为监听地址，空串表示监听全部接口。
	Bind string `mapstructure:"bind"`

	// Port 为 WebSocket 服务端口。
	Port int `mapstructure:"port"`

	// MetricsPort 为 Prometheus 指标端口，0 表示不暴露指标。
	MetricsPort int `mapstructure:"metrics-port"`

	// WritePoolSize 为写协程池容量，0 表示使用默认容量。
	WritePoolSize int `mapstructure:"write-pool-size"`
}

// Server 接受 WebSocket 连接并把它们交给会话协调器。
//
// 每条连接的读循环运行在 HTTP 处理协程上，写循环提交到共享协程池；
// 池内 panic 被统一 recover，单条连接的异常不会波及其余连接。
type Server struct {
	log.Binder

	cfg   Config
	coord *relay.Coordinator
	pool  *conc.Pool

	upgrader websocket.Upgrader

	mu      sync.Mutex
	httpSrv *http.Server
	metaSrv *http.Server
}

// New 创建 Server。
func New(cfg Config, coord *relay.Coordinator) (*Server, error) {
	if coord == nil {
		return nil, fmt.Errorf("server: coordinator is nil")
	}

	pool, err := conc.NewPool(cfg.WritePoolSize)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:   cfg,
		coord: coord,
		pool:  pool,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{Subprotocol},
			// 服务端不区分来源站点，任何客户端都可以接入。
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.SetLogger(log.With(log.FieldComponent("server")))
	return s, nil
}

// ServeHTTP 实现 http.Handler：完成 WebSocket 升级并驱动连接。
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 失败时 gorilla 已经向客户端写过响应。
		s.Logger().Debug("handshake rejected",
			zap.String("remote", r.RemoteAddr),
			zap.Error(merr.WrapErrHandshakeFailed(r.RemoteAddr, err)))
		return
	}

	id := relay.ConnID(uuid.NewString())

	conn, err := newConn(r.Context(), id, ws, s.coord)
	if err != nil {
		s.Logger().Warn("connection setup failed",
			log.FieldConn(string(id)),
			zap.Error(err))
		_ = ws.Close()
		return
	}

	s.Logger().Info("connection accepted",
		log.FieldConn(string(id)),
		zap.String("remote", r.RemoteAddr),
		zap.String("subprotocol", ws.Subprotocol()))

	if err := s.pool.Submit(conn.WriteLoop); err != nil {
		s.Logger().Warn("submit write loop failed",
			log.FieldConn(string(id)),
			zap.Error(err))
		conn.shutdown()
		return
	}

	conn.Run()
}

// Run 启动监听并阻塞直到 ctx 取消或监听失败。
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port)

	mux := http.NewServeMux()
	mux.Handle("/", s)

	s.mu.Lock()
	httpSrv := &http.Server{Addr: addr, Handler: mux}
	s.httpSrv = httpSrv

	var metaSrv *http.Server
	if s.cfg.MetricsPort > 0 {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(
			metrics.GetGatherer(),
			promhttp.HandlerOpts{},
		))
		metaSrv = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.MetricsPort),
			Handler: metricsMux,
		}
		s.metaSrv = metaSrv
	}
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.Logger().Info("listening", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if metaSrv != nil {
		g.Go(func() error {
			s.Logger().Info("metrics listening", zap.String("addr", metaSrv.Addr))
			if err := metaSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		s.Close()
		return ctx.Err()
	})

	return g.Wait()
}

// Close 停止监听并释放写协程池。多次调用是幂等的。
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		_ = s.httpSrv.Shutdown(shutdownCtx)
		s.httpSrv = nil
	}
	if s.metaSrv != nil {
		_ = s.metaSrv.Shutdown(shutdownCtx)
		s.metaSrv = nil
	}

	s.pool.Release()
}
