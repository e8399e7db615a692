package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Client 客户实体
// 预付卡客户，余额（credits）只能通过充值调整或购买扣减两条路径变动
type Client struct {
	ID      int64            `json:"id"`
	Code    string           `json:"code"`  // 卡号/客户编码，入库时统一小写，按小写匹配查找
	Name    string           `json:"name"`  // 客户姓名，入库时统一小写
	Email   string           `json:"email"`
	Phone   string           `json:"phone"`
	Credits decimal.Decimal  `json:"credits"` // 预付余额（RON）
	History []PurchaseRecord `json:"history"` // 消费历史，只追加，不修改，不删除
}

// NormalizeKey 查找键归一化：编码与姓名都按小写比较
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// PurchaseRecord 消费历史条目
//
// 【重要】product 字段是购买时刻商品名的快照，不是外键：
// 商品后续改名、改价都不会回溯修改历史，历史金额以成交时价格为准
type PurchaseRecord struct {
	PurchaseNo string          `json:"purchase_no"`
	Timestamp  string          `json:"timestamp"` // 秒级精度，格式 2006-01-02 15:04:05
	Product    string          `json:"product"`
	Quantity   int             `json:"quantity"`
	TotalCost  decimal.Decimal `json:"total_cost"` // quantity × 成交时单价
}

// TimestampLayout 消费历史时间戳格式
const TimestampLayout = "2006-01-02 15:04:05"
