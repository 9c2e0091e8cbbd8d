package ssh

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// startFakeONT 启动一个模拟光猫 WAP 命令行的 SSH 服务
func startFakeONT(t *testing.T, respond func(cmd string) string) *ConnectionInfo {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == "root" && string(pass) == "secret" {
				return nil, nil
			}
			return nil, errors.New("denied")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go serveFakeONT(nc, cfg, respond)
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return &ConnectionInfo{Host: host, Port: p, Username: "root", Password: "secret"}
}

func serveFakeONT(nc net.Conn, cfg *ssh.ServerConfig, respond func(string) string) {
	_, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for nch := range chans {
		if nch.ChannelType() != "session" {
			nch.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, creqs, err := nch.Accept()
		if err != nil {
			return
		}
		go func() {
			for r := range creqs {
				if r.WantReply {
					r.Reply(r.Type == "pty-req" || r.Type == "shell", nil)
				}
			}
		}()
		go func() {
			defer ch.Close()
			io.WriteString(ch, "Welcome Visiting Huawei Home Gateway\r\n\x1b[1mWAP>\x1b[0m")
			sc := bufio.NewScanner(ch)
			for sc.Scan() {
				cmd := strings.TrimSpace(sc.Text())
				io.WriteString(ch, cmd+"\r\n"+respond(cmd)+"\r\nsuccess!\r\nWAP>")
			}
		}()
	}
}

func testConfig() *Config {
	return &Config{
		Timeout:      5 * time.Second,
		BannerWait:   200 * time.Millisecond,
		ReadInterval: 50 * time.Millisecond,
	}
}

func TestRunCollectsCommandOutput(t *testing.T) {
	info := startFakeONT(t, func(cmd string) string {
		if cmd == "display deviceinfo" {
			return "Uptime = 1 day(s) 00:00:01\x07"
		}
		return "ERROR: Unknown command."
	})

	c := NewClient(testConfig())
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, info))
	defer c.Close()
	assert.True(t, c.IsConnected())

	res, err := c.Run(ctx, "display deviceinfo", 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Output, "display deviceinfo"), "横幅应已被丢弃: %q", res.Output)
	assert.Contains(t, res.Output, "Uptime = 1 day(s) 00:00:01\r\nsuccess!")
	assert.NotContains(t, res.Output, "\x07")

	res, err = c.Run(ctx, "display nothing", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "ERROR: Unknown command.")
	assert.NotContains(t, res.Output, "Uptime")
}

func TestRunHonoursContext(t *testing.T) {
	info := startFakeONT(t, func(string) string { return "x: 1" })
	c := NewClient(testConfig())
	require.NoError(t, c.Connect(context.Background(), info))
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Run(ctx, "wap top", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnectRejectsBadPassword(t *testing.T) {
	info := startFakeONT(t, func(string) string { return "" })
	info.Password = "wrong"

	c := NewClient(testConfig())
	err := c.Connect(context.Background(), info)
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.False(t, c.IsConnected())
}

func TestRunWithoutConnect(t *testing.T) {
	c := NewClient(nil)
	_, err := c.Run(context.Background(), "wap top", 0)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, c.Close())
}
