package simulate

import (
	"bufio"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/ontcollector/ontcollector/internal/config"
	"github.com/ontcollector/ontcollector/pkg/logger"
)

const (
	banner = "\r\nWelcome Visiting Huawei Home Gateway\r\nCopyright by Huawei Technologies Co., Ltd.\r\n\r\n"
	prompt = "WAP>"
	// 未匹配命令时光猫返回的提示
	unknownCommand = "ERROR::Command is not existed"
)

// Server 模拟光猫 WAP 命令行的 SSH 服务：回显命令、输出夹具内容、追加 success! 与提示符
type Server struct {
	cfg      config.SimulateConfig
	listener net.Listener
	hostKey  ssh.Signer

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// Start 启动模拟服务；Port 为 0 时监听随机端口
func Start(cfg config.SimulateConfig) (*Server, error) {
	signer, err := loadOrCreateHostKey(cfg.HostKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init host key: %w", err)
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, listener: ln, hostKey: signer, conns: make(map[net.Conn]struct{})}
	go s.acceptLoop()
	logger.WithFields(map[string]interface{}{"addr": ln.Addr().String(), "fixtures": cfg.FixtureDir}).Info("Simulate: ONT shell started")
	return s, nil
}

// Addr 实际监听地址
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Port 实际监听端口
func (s *Server) Port() int {
	if a, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

// Stop 关闭监听与全部连接并等待会话结束
func (s *Server) Stop() {
	_ = s.listener.Close()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	logger.Info("Simulate: ONT shell stopped")
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warnf("Simulate: accept error: %v", err)
			time.Sleep(200 * time.Millisecond)
			continue
		}
		s.mu.Lock()
		if s.cfg.MaxConn > 0 && len(s.conns) >= s.cfg.MaxConn {
			s.mu.Unlock()
			_ = conn.Close()
			logger.Warn("Simulate: reject connection, max_conn exceeded")
			continue
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConn(c)
			s.mu.Lock()
			delete(s.conns, c)
			s.mu.Unlock()
		}(conn)
	}
}

func (s *Server) checkPassword(user, pass string) bool {
	return user == s.cfg.Username && pass == s.cfg.Password
}

func (s *Server) handleConn(nc net.Conn) {
	srvCfg := &ssh.ServerConfig{
		PasswordCallback: func(md ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if s.checkPassword(md.User(), string(password)) {
				return nil, nil
			}
			logger.Debugf("Simulate: auth failed for %s", md.User())
			return nil, fmt.Errorf("access denied")
		},
		KeyboardInteractiveCallback: func(md ssh.ConnMetadata, challenge ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
			answers, err := challenge(md.User(), "", []string{"Password:"}, []bool{false})
			if err != nil {
				return nil, err
			}
			if len(answers) > 0 && s.checkPassword(md.User(), answers[0]) {
				return nil, nil
			}
			return nil, fmt.Errorf("access denied")
		},
	}
	srvCfg.AddHostKey(s.hostKey)

	conn, chans, reqs, err := ssh.NewServerConn(nc, srvCfg)
	if err != nil {
		logger.Debugf("Simulate: handshake failed from %s: %v", nc.RemoteAddr(), err)
		_ = nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	var sessions sync.WaitGroup
	for ch := range chans {
		if ch.ChannelType() != "session" {
			_ = ch.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := ch.Accept()
		if err != nil {
			logger.Warnf("Simulate: channel accept failed: %v", err)
			continue
		}
		sessions.Add(1)
		go func() {
			defer sessions.Done()
			s.handleSession(channel, requests)
		}()
	}
	sessions.Wait()
}

func (s *Server) handleSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()
	for req := range requests {
		switch req.Type {
		case "pty-req", "window-change":
			_ = req.Reply(true, nil)
		case "shell":
			_ = req.Reply(true, nil)
			go ssh.DiscardRequests(requests)
			s.runShell(channel)
			return
		default:
			// 光猫 WAP 命令行不支持 exec
			_ = req.Reply(false, nil)
		}
	}
}

func (s *Server) runShell(channel ssh.Channel) {
	if s.cfg.IdleSeconds > 0 {
		idle := time.Duration(s.cfg.IdleSeconds) * time.Second
		timer := time.AfterFunc(idle, func() { _ = channel.Close() })
		defer timer.Stop()
		channel = &idleChannel{Channel: channel, timer: timer, idle: idle}
	}

	_, _ = io.WriteString(channel, banner+prompt)
	reader := bufio.NewReader(channel)
	for {
		line, err := reader.ReadString('\n')
		cmd := strings.TrimSpace(strings.Trim(line, "\r\n"))
		if err != nil && cmd == "" {
			return
		}
		if cmd == "" {
			_, _ = io.WriteString(channel, "\r\n"+prompt)
			continue
		}
		if strings.EqualFold(cmd, "quit") || strings.EqualFold(cmd, "exit") {
			_, _ = io.WriteString(channel, "\r\n")
			return
		}
		_, _ = io.WriteString(channel, Respond(s.cfg.FixtureDir, cmd))
		if err != nil {
			return
		}
	}
}

// Respond 生成一条命令的完整回显：命令、内容、状态行与提示符
func Respond(fixtureDir, cmd string) string {
	body, ok := LoadFixture(fixtureDir, cmd)
	if !ok {
		return cmd + "\r\n" + unknownCommand + "\r\n" + prompt
	}
	return cmd + "\r\n" + body + "success!\r\n" + prompt
}

// LoadFixture 读取命令对应的夹具；先按原命令名，再按空格替换为下划线的文件名查找
// 命令中含路径分隔符或 ".." 时视为未知命令
func LoadFixture(dir, cmd string) (string, bool) {
	if cmd == "" || strings.ContainsAny(cmd, `/\`) || strings.Contains(cmd, "..") {
		return "", false
	}
	for _, name := range []string{cmd, strings.ReplaceAll(cmd, " ", "_")} {
		bs, err := os.ReadFile(filepath.Join(dir, name+".txt"))
		if err == nil {
			return ensureCRLF(string(bs)), true
		}
	}
	return "", false
}

// idleChannel 每次读到输入时重置空闲计时
type idleChannel struct {
	ssh.Channel
	timer *time.Timer
	idle  time.Duration
}

func (c *idleChannel) Read(p []byte) (int, error) {
	n, err := c.Channel.Read(p)
	if n > 0 {
		c.timer.Reset(c.idle)
	}
	return n, err
}

// ensureCRLF 统一为 CRLF 并保证以换行结尾
func ensureCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	if s != "" && !strings.HasSuffix(s, "\r\n") {
		s += "\r\n"
	}
	return s
}

// loadOrCreateHostKey path 为空时生成临时密钥，否则加载或生成并持久化 RSA 2048 密钥
func loadOrCreateHostKey(path string) (ssh.Signer, error) {
	if path != "" {
		if bs, err := os.ReadFile(path); err == nil {
			signer, err := ssh.ParsePrivateKey(bs)
			if err == nil {
				return signer, nil
			}
			logger.Warnf("Simulate: host key %s unreadable, regenerating: %v", path, err)
		}
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to ensure host key dir: %w", err)
		}
		if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write host key: %w", err)
		}
		logger.Infof("Simulate: host key generated at %s", path)
	}
	return ssh.ParsePrivateKey(pemBytes)
}
