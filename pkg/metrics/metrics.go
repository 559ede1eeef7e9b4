// Package metrics 记录派工写路径的结果计数
package metrics

// Recorder 写路径指标接口
type Recorder interface {
	// AssignmentsCreated 记录新建派工数；path 为 single | bulk | import | sync
	AssignmentsCreated(path string, n int)
	// BatchItems 记录批量条目结果；outcome 为 created | skipped | failed
	BatchItems(path, outcome string, n int)
	// ReconcileRecords 记录同步条目结果；outcome 为 created | updated | skipped | failed
	ReconcileRecords(policy string, dryRun bool, outcome string, n int)
	// StatusTransition 记录一次状态流转
	StatusTransition(from, to string)
}

// Nop 丢弃全部指标，测试与关闭指标时使用
type Nop struct{}

var _ Recorder = (*Nop)(nil)

// NewNop 创建空实现
func NewNop() *Nop { return &Nop{} }

func (*Nop) AssignmentsCreated(string, int)             {}
func (*Nop) BatchItems(string, string, int)             {}
func (*Nop) ReconcileRecords(string, bool, string, int) {}
func (*Nop) StatusTransition(string, string)            {}
