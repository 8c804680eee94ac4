package consts

// 顾问人格
const (
	ConservativeAgent = "Conservative"
	AggressiveAgent   = "Aggressive"
	BalancedAgent     = "Balanced"
)

// 确定性套利检查
const ArbitrageAgent = "ArbitrageBot"

// 图节点
const (
	NodeTemplate = "template"
	NodeModel    = "model"
	NodeClassify = "classify"
)
