package handler

import (
	"bufio"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// LogsHandler 日志查询处理器
type LogsHandler struct {
	path string
}

// NewLogsHandler path 为空时接口返回 LOG_PATH_EMPTY
func NewLogsHandler(path string) *LogsHandler {
	return &LogsHandler{path: strings.TrimSpace(path)}
}

// TailLogs 返回日志文件末尾 N 行，支持关键字、级别、命令过滤
// @Router /api/v1/logs [get]
func (h *LogsHandler) TailLogs(c *gin.Context) {
	if h.path == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "LOG_PATH_EMPTY", Message: "日志路径未配置"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	f := logFilter{
		q:       strings.ToLower(strings.TrimSpace(c.Query("q"))),
		level:   strings.ToLower(strings.TrimSpace(c.Query("level"))),
		command: strings.TrimSpace(c.Query("command")),
	}

	tail, err := tailLines(h.path, limit, f.match)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "READ_FAILED", Message: "读取日志失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "获取日志成功",
		Data: gin.H{
			"path":  h.path,
			"count": len(tail),
			"lines": tail,
		},
	})
}

type logFilter struct {
	q       string
	level   string
	command string
}

// match 同时适配 logrus 的 text 与 json 格式
func (f logFilter) match(line string) bool {
	lc := strings.ToLower(line)
	if f.q != "" && !strings.Contains(lc, f.q) {
		return false
	}
	if f.level != "" && !strings.Contains(lc, `level=`+f.level) && !strings.Contains(lc, `"level":"`+f.level+`"`) {
		return false
	}
	if f.command != "" &&
		!strings.Contains(line, `command="`+f.command+`"`) &&
		!strings.Contains(line, `command=`+f.command) &&
		!strings.Contains(line, `"command":"`+f.command+`"`) {
		return false
	}
	return true
}

// tailLines 顺序扫描文件，仅保留最后 limit 条匹配行
func tailLines(path string, limit int, keep func(string) bool) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	ring := make([]string, 0, limit)
	s := bufio.NewScanner(fh)
	s.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for s.Scan() {
		ln := s.Text()
		if !keep(ln) {
			continue
		}
		if len(ring) == limit {
			copy(ring, ring[1:])
			ring = ring[:limit-1]
		}
		ring = append(ring, ln)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return ring, nil
}
