package model

import (
	"github.com/shopspring/decimal"
)

// Product 商品实体
// name 是目录的查找键（精确匹配、区分大小写），price 为非负单价
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}
