package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"depthdemo-server-go/src/core/compose"
	"depthdemo-server-go/src/core/utils"
)

// 测试用例目录内的文件名
const (
	ParametersFile = "parameters.txt"
	PrimaryFile    = "primary_image.jpg"
	DepthFile      = "depth_image.jpg"
	EVFile         = "ev_image.jpg"
	OutputFile     = "output.jpg"

	dirPrefix = "test_"
)

// ErrMalformedEntry 根目录下存在不符合 test_<N> 命名的条目
var ErrMalformedEntry = errors.New("malformed test case entry")

// parameters.txt 的固定行顺序与标签
var parameterLabels = []string{
	"EV Image",
	"Focus Coordinates",
	"Lens Simulation",
	"Depth of Field",
	"FStop",
	"Image Format",
	"Depth Format",
}

func parameterValues(p compose.Parameters) []string {
	return []string{
		p.EVChoice,
		p.FocusCoordinates,
		p.LensSimulation,
		p.DepthOfField,
		p.FStop,
		p.ImageFormat,
		p.DepthFormat,
	}
}

// DirName 序号对应的目录名
func DirName(n int) string {
	return dirPrefix + strconv.Itoa(n)
}

// ParseDirName 解析 test_<N>，N 必须是非负十进制整数
func ParseDirName(name string) (int, error) {
	digits, ok := strings.CutPrefix(name, dirPrefix)
	if !ok || digits == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedEntry, name)
	}
	for _, ch := range digits {
		if ch < '0' || ch > '9' {
			return 0, fmt.Errorf("%w: %q", ErrMalformedEntry, name)
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformedEntry, name, err)
	}
	return n, nil
}

// FormatParameters 生成 parameters.txt 内容：七行，无结尾换行
func FormatParameters(p compose.Parameters) string {
	values := parameterValues(p)
	lines := make([]string, len(parameterLabels))
	for i, label := range parameterLabels {
		lines[i] = label + ": " + utils.SingleLine(values[i])
	}
	return strings.Join(lines, "\n")
}

// ParseParameters 解析 parameters.txt 内容
func ParseParameters(text string) (compose.Parameters, error) {
	var values []string
	for _, line := range splitLines(text) {
		i := len(values)
		if i >= len(parameterLabels) {
			return compose.Parameters{}, fmt.Errorf("parameters.txt 多余的行: %q", line)
		}
		value, ok := strings.CutPrefix(line, parameterLabels[i]+": ")
		if !ok {
			// 值为空时行尾空格可能被编辑器去掉
			if line != parameterLabels[i]+":" {
				return compose.Parameters{}, fmt.Errorf("parameters.txt 第%d行应为 %q: %q", i+1, parameterLabels[i], line)
			}
			value = ""
		}
		values = append(values, value)
	}
	if len(values) != len(parameterLabels) {
		return compose.Parameters{}, fmt.Errorf("parameters.txt 行数为%d，应为%d", len(values), len(parameterLabels))
	}

	return compose.Parameters{
		EVChoice:         values[0],
		FocusCoordinates: values[1],
		LensSimulation:   values[2],
		DepthOfField:     values[3],
		FStop:            values[4],
		ImageFormat:      values[5],
		DepthFormat:      values[6],
	}, nil
}

// splitLines 按行切分，不限制行长度。忽略末尾换行和行尾的\r
func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// ReadParameters 读取测试用例目录中的 parameters.txt
func ReadParameters(dir string) (compose.Parameters, error) {
	data, err := os.ReadFile(filepath.Join(dir, ParametersFile))
	if err != nil {
		return compose.Parameters{}, err
	}
	return ParseParameters(string(data))
}

// NextSequence 扫描根目录计算下一个序号。根目录不存在或为空时为0。
// skipMalformed 为 false 时，任何不符合命名的条目都会中止扫描
func NextSequence(root string, skipMalformed bool) (int, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("读取测试用例目录失败: %w", err)
	}

	next := 0
	for _, entry := range entries {
		n, err := ParseDirName(entry.Name())
		if err != nil {
			if skipMalformed {
				continue
			}
			return 0, err
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return next, nil
}

// Case 已记录的测试用例
type Case struct {
	SequenceNumber int                `json:"sequence_number"`
	Dir            string             `json:"dir"`
	HasEV          bool               `json:"has_ev"`
	Params         compose.Parameters `json:"params"`
}

// List 列出根目录下的测试用例，按序号升序；不符合命名的条目被忽略
func List(root string) ([]Case, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取测试用例目录失败: %w", err)
	}

	var cases []Case
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		n, err := ParseDirName(entry.Name())
		if err != nil {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		c := Case{SequenceNumber: n, Dir: dir}
		if _, err := os.Stat(filepath.Join(dir, EVFile)); err == nil {
			c.HasEV = true
		}
		if params, err := ReadParameters(dir); err == nil {
			c.Params = params
		}
		cases = append(cases, c)
	}
	sort.Slice(cases, func(i, j int) bool {
		return cases[i].SequenceNumber < cases[j].SequenceNumber
	})
	return cases, nil
}
