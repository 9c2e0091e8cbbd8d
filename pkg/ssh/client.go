package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ontcollector/ontcollector/internal/util"
	"golang.org/x/crypto/ssh"
)

// ErrNotConnected 会话未建立或已断开
var ErrNotConnected = errors.New("ssh shell not connected")

// Config SSH配置
type Config struct {
	Timeout   time.Duration `yaml:"timeout"`
	KeepAlive time.Duration `yaml:"keep_alive"`
	// BannerWait 建立 Shell 后等待并丢弃登录横幅的时长
	BannerWait time.Duration `yaml:"banner_wait"`
	// ReadInterval 命令等待结束后，按此间隔轮询直到无新数据
	ReadInterval time.Duration `yaml:"read_interval"`
}

// ConnectionInfo SSH连接信息
type ConnectionInfo struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	KeyFile  string `json:"key_file,omitempty"`
}

// CommandResult 命令执行结果
type CommandResult struct {
	Command  string        `json:"command"`
	Output   string        `json:"output"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

// Client 持久交互式 Shell 客户端
// 一个连接上只开一个 PTY Shell，命令串行执行
type Client struct {
	config *Config

	mutex      sync.RWMutex
	connection *ssh.Client
	session    *ssh.Session
	stdin      io.WriteCloser
	out        *shellBuffer
	info       *ConnectionInfo
	stopKeep   context.CancelFunc

	// runMu 串行化命令，保证输出不交错
	runMu sync.Mutex
}

// NewClient 创建SSH客户端
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.ReadInterval <= 0 {
		config.ReadInterval = 200 * time.Millisecond
	}
	return &Client{config: config}
}

// clientConfig 构建兼容旧设备的 SSH 握手参数
func (c *Client) clientConfig(info *ConnectionInfo) (*ssh.ClientConfig, error) {
	sshConfig := &ssh.ClientConfig{
		User:            info.Username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.config.Timeout,
		Config: ssh.Config{
			// 光猫固件多为旧版 dropbear，需保留旧的密钥交换算法
			KeyExchanges: []string{
				"curve25519-sha256",
				"curve25519-sha256@libssh.org",
				"ecdh-sha2-nistp256",
				"ecdh-sha2-nistp384",
				"ecdh-sha2-nistp521",
				"diffie-hellman-group14-sha256",
				"diffie-hellman-group14-sha1",
				"diffie-hellman-group1-sha1",
				"diffie-hellman-group-exchange-sha256",
				"diffie-hellman-group-exchange-sha1",
			},
			Ciphers: []string{
				"aes128-gcm@openssh.com",
				"aes256-gcm@openssh.com",
				"aes128-ctr",
				"aes192-ctr",
				"aes256-ctr",
				"aes128-cbc",
				"3des-cbc",
			},
			MACs: []string{
				"hmac-sha2-256-etm@openssh.com",
				"hmac-sha2-256",
				"hmac-sha1",
				"hmac-sha1-96",
			},
		},
		HostKeyAlgorithms: []string{
			"ssh-ed25519",
			"ecdsa-sha2-nistp256",
			"ecdsa-sha2-nistp384",
			"ecdsa-sha2-nistp521",
			"rsa-sha2-256",
			"rsa-sha2-512",
			"ssh-rsa",
		},
	}

	if info.KeyFile != "" {
		pem, err := os.ReadFile(info.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse key file: %w", err)
		}
		sshConfig.Auth = append(sshConfig.Auth, ssh.PublicKeys(signer))
	}
	if info.Password != "" {
		// 同时尝试 password 与 keyboard-interactive
		sshConfig.Auth = append(sshConfig.Auth,
			ssh.Password(info.Password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = info.Password
				}
				return answers, nil
			}),
		)
	}
	if len(sshConfig.Auth) == 0 {
		return nil, fmt.Errorf("no auth method for %s@%s", info.Username, info.Host)
	}
	return sshConfig, nil
}

// Connect 建立连接并打开交互式 Shell，丢弃登录横幅
func (c *Client) Connect(ctx context.Context, info *ConnectionInfo) error {
	sshConfig, err := c.clientConfig(info)
	if err != nil {
		return err
	}

	address := net.JoinHostPort(info.Host, fmt.Sprint(info.Port))
	dialer := &net.Dialer{Timeout: c.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, sshConfig)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SSH connection: %w", err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	session, stdin, out, err := openShell(client)
	if err != nil {
		client.Close()
		return err
	}

	c.mutex.Lock()
	c.closeLocked()
	c.connection = client
	c.session = session
	c.stdin = stdin
	c.out = out
	c.info = info
	keepCtx, cancel := context.WithCancel(context.Background())
	c.stopKeep = cancel
	c.mutex.Unlock()

	go c.keepAlive(keepCtx)

	// 登录横幅与首个提示符不属于任何命令输出
	if c.config.BannerWait > 0 {
		if err := sleepCtx(ctx, c.config.BannerWait); err != nil {
			return err
		}
	}
	out.Take()
	return nil
}

// openShell 申请 PTY 并启动 Shell，stdout/stderr 合并写入缓冲
func openShell(client *ssh.Client) (*ssh.Session, io.WriteCloser, *shellBuffer, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	var ptyErr error
	for _, term := range []string{"vt100", "xterm", "dumb"} {
		if ptyErr = session.RequestPty(term, 200, 50, modes); ptyErr == nil {
			break
		}
	}
	if ptyErr != nil {
		session.Close()
		return nil, nil, nil, fmt.Errorf("failed to request pty: %w", ptyErr)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, nil, nil, fmt.Errorf("failed to get stdin: %w", err)
	}
	out := &shellBuffer{}
	session.Stdout = out
	session.Stderr = out

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, nil, nil, fmt.Errorf("failed to start shell: %w", err)
	}
	return session, stdin, out, nil
}

// Run 发送一条命令，等待 wait 后继续读取直到设备无新输出
// 返回的输出已去除 ANSI 控制序列，保留命令回显与状态行
func (c *Client) Run(ctx context.Context, command string, wait time.Duration) (*CommandResult, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.mutex.RLock()
	stdin, out := c.stdin, c.out
	c.mutex.RUnlock()
	if stdin == nil || out == nil {
		return nil, ErrNotConnected
	}

	start := time.Now()
	result := &CommandResult{Command: command}

	out.Take()
	if _, err := io.WriteString(stdin, command+"\n"); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("write command: %w", err)
	}

	if err := sleepCtx(ctx, wait); err != nil {
		result.Error = err.Error()
		return result, err
	}
	// 读取直到一个轮询间隔内无新数据
	last := out.Len()
	for {
		if err := sleepCtx(ctx, c.config.ReadInterval); err != nil {
			result.Error = err.Error()
			return result, err
		}
		n := out.Len()
		if n == last {
			break
		}
		last = n
	}

	result.Output = util.CleanTerminalOutput(util.EnsureUTF8Bytes(out.Take()))
	result.Duration = time.Since(start)
	return result, nil
}

// Close 关闭 Shell 与连接
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.stopKeep != nil {
		c.stopKeep()
		c.stopKeep = nil
	}
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	c.stdin = nil
	c.out = nil
	if c.connection != nil {
		err := c.connection.Close()
		c.connection = nil
		return err
	}
	return nil
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	c.mutex.RLock()
	conn := c.connection
	c.mutex.RUnlock()
	if conn == nil {
		return false
	}
	// 轻量级健康检查：发送 keepalive 请求而不创建会话
	_, _, err := conn.SendRequest("keepalive@openssh.com", false, nil)
	return err == nil
}

// keepAlive 保持连接活跃，连接断开后释放资源
func (c *Client) keepAlive(ctx context.Context) {
	if c.config.KeepAlive <= 0 {
		return
	}

	ticker := time.NewTicker(c.config.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.IsConnected() {
				c.mutex.Lock()
				// 仅在仍是本轮连接时清理
				if ctx.Err() == nil {
					c.closeLocked()
				}
				c.mutex.Unlock()
				return
			}
		}
	}
}

// GetConnectionStats 获取连接统计信息
func (c *Client) GetConnectionStats() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := map[string]interface{}{
		"connected": c.connection != nil,
		"shell":     c.session != nil,
	}
	if c.info != nil {
		stats["host"] = c.info.Host
		stats["port"] = c.info.Port
		stats["username"] = c.info.Username
	}
	return stats
}

// shellBuffer 并发安全的输出缓冲，由 SSH 会话写入
type shellBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *shellBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *shellBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// Take 取出并清空已缓冲的数据
func (b *shellBuffer) Take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := append([]byte(nil), b.buf.Bytes()...)
	b.buf.Reset()
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsAuthError 判断是否为认证失败（不应重试）
func IsAuthError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "unable to authenticate")
}
