package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/h2non/filetype"
)

// Result 检测结果
type Result struct {
	RealExt      string // 真实的类型后缀 (根据文件头)
	DeclaredExt  string // 声明的后缀 (文件名)
	IsMasquerade bool   // 文件头与后缀不符
	Executable   bool   // PE/ELF 或可直接运行的脚本
	Audio        bool   // PlaySound 能播放的 WAV
	Message      string
}

// TypeInspector sniffs the files a reaction points at: the program to launch
// and the sound asset to play.
type TypeInspector struct {
	aliasMap map[string]map[string]bool
	scripts  map[string]bool
	mu       sync.RWMutex
}

func NewTypeInspector() *TypeInspector {
	inspector := &TypeInspector{
		aliasMap: make(map[string]map[string]bool),
		scripts:  make(map[string]bool),
	}
	inspector.initRules()
	return inspector
}

// initRules 哪些“表里不一”是合法的
func (t *TypeInspector) initRules() {
	allow := func(realType string, allowedExts ...string) {
		if _, ok := t.aliasMap[realType]; !ok {
			t.aliasMap[realType] = make(map[string]bool)
		}
		t.aliasMap[realType][realType] = true
		for _, ext := range allowedExts {
			t.aliasMap[realType][ext] = true
		}
	}

	// PE: .com/.scr 也能被 ShellExecute 运行
	allow("exe", "com", "scr")
	allow("elf", "", "bin", "run", "out")
	allow("wav", "wave")

	// 纯文本脚本没有 magic bytes, 只能看后缀
	for _, ext := range []string{"bat", "cmd", "ps1", "vbs", "sh"} {
		t.scripts[ext] = true
	}
}

// Inspect reads the file header and classifies it.
func (t *TypeInspector) Inspect(filePath string) (*Result, error) {
	declaredExt := strings.ToLower(strings.TrimPrefix(filepath.Ext(filePath), "."))

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file failed: %w", err)
	}
	defer file.Close()

	// 262 bytes 是 filetype 库建议的最佳长度
	head := make([]byte, 262)
	n, err := file.Read(head)
	if err != nil && n == 0 {
		return &Result{DeclaredExt: declaredExt, Message: "Empty file"}, nil
	}

	kind, _ := filetype.Match(head[:n])

	t.mu.RLock()
	defer t.mu.RUnlock()

	if kind == filetype.Unknown {
		return &Result{
			RealExt:     "unknown",
			DeclaredExt: declaredExt,
			Executable:  t.scripts[declaredExt],
			Message:     "Unknown binary signature (likely text)",
		}, nil
	}

	realExt := kind.Extension
	res := &Result{
		RealExt:     realExt,
		DeclaredExt: declaredExt,
		Executable:  realExt == "exe" || realExt == "elf",
		Audio:       realExt == "wav",
	}
	if realExt == declaredExt || t.aliasMap[realExt][declaredExt] {
		return res, nil
	}
	res.IsMasquerade = true
	res.Message = fmt.Sprintf("Type Mismatch! Header is '%s' but file is '%s'", realExt, declaredExt)
	return res, nil
}
