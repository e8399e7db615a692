package handler

import (
	"errors"

	"possystem/internal/config"
	"possystem/internal/infrastructure/lock"
	"possystem/internal/model"
	"possystem/internal/repository"
	"possystem/internal/service"
	"possystem/internal/store"
	"possystem/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	clientService   *service.ClientService
	catalogService  *service.CatalogService
	purchaseService *service.PurchaseService
	cfg             *config.Config
}

// NewHandler 创建处理器实例
func NewHandler(s *store.Store, locks *lock.Provider, cfg *config.Config) *Handler {
	return &Handler{
		clientService:   service.NewClientService(s, locks, cfg),
		catalogService:  service.NewCatalogService(s, locks, cfg),
		purchaseService: service.NewPurchaseService(s, locks, cfg),
		cfg:             cfg,
	}
}

// renderError 业务错误统一映射到响应码
func renderError(c *gin.Context, err error) {
	var insufficient *service.InsufficientCreditsError

	switch {
	case errors.As(err, &insufficient):
		response.ErrorWithData(c, response.CodeCreditsNotEnough, err.Error(), gin.H{
			"required":  insufficient.Required,
			"available": insufficient.Available,
			"shortfall": insufficient.Shortfall(),
		})
	case errors.Is(err, lock.ErrLockFailed):
		response.BusinessError(c, response.CodeSystemBusy, "系统繁忙，请稍后重试")
	case errors.Is(err, repository.ErrClientNotFound):
		response.BusinessError(c, response.CodeClientNotFound, err.Error())
	case errors.Is(err, repository.ErrProductNotFound):
		response.BusinessError(c, response.CodeProductNotFound, err.Error())
	case errors.Is(err, repository.ErrDuplicateCode):
		response.BusinessError(c, response.CodeDuplicateCode, err.Error())
	case errors.Is(err, repository.ErrDuplicateProduct):
		response.BusinessError(c, response.CodeDuplicateProduct, err.Error())
	case errors.Is(err, service.ErrEmptyCode),
		errors.Is(err, service.ErrEmptyName),
		errors.Is(err, service.ErrNegativeCredit),
		errors.Is(err, service.ErrEmptyProductName),
		errors.Is(err, service.ErrNegativePrice),
		errors.Is(err, service.ErrNoItems),
		errors.Is(err, service.ErrInvalidQuantity):
		response.ParamError(c, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// respond 成功出口：落盘失败时业务照常返回，但消息里带上告警
func respond(c *gin.Context, err error, data interface{}) {
	if err != nil && errors.Is(err, store.ErrPersistFailed) {
		response.SuccessWithWarning(c, "操作已生效，数据落盘失败，等待重试", data)
		return
	}
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, data)
}

// ============================================================
// 商品目录接口
// ============================================================

// ListProducts 商品列表
// GET /api/v1/product/list
func (h *Handler) ListProducts(c *gin.Context) {
	response.Success(c, h.catalogService.List(c.Request.Context()))
}

// AddProductRequest 上架商品请求
type AddProductRequest struct {
	Name  string          `json:"name" binding:"required"`
	Price decimal.Decimal `json:"price"`
}

// AddProduct 上架商品
// POST /api/v1/product/add
func (h *Handler) AddProduct(c *gin.Context) {
	var req AddProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	product, err := h.catalogService.Add(c.Request.Context(), req.Name, req.Price)
	respond(c, err, product)
}

// UpdateProductRequest 改名/改价请求
type UpdateProductRequest struct {
	ID    int64           `json:"id" binding:"required"`
	Name  string          `json:"name" binding:"required"`
	Price decimal.Decimal `json:"price"`
}

// UpdateProduct 改名/改价
// POST /api/v1/product/update
func (h *Handler) UpdateProduct(c *gin.Context) {
	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	product, err := h.catalogService.Update(c.Request.Context(), req.ID, req.Name, req.Price)
	respond(c, err, product)
}

// ============================================================
// 客户账本接口
// ============================================================

// ListClients 客户列表
// GET /api/v1/client/list
func (h *Handler) ListClients(c *gin.Context) {
	response.Success(c, h.clientService.List(c.Request.Context()))
}

// FindClient 按编码或姓名查找客户（不区分大小写）
// GET /api/v1/client/find?by=code|name&query=xxx
// 查不到返回空列表，不报错
func (h *Handler) FindClient(c *gin.Context) {
	by := c.DefaultQuery("by", service.FindByCode)
	query := c.Query("query")
	if query == "" {
		response.ParamError(c, "query 参数不能为空")
		return
	}

	clients, err := h.clientService.Find(c.Request.Context(), query, by)
	if err != nil {
		response.ParamError(c, err.Error())
		return
	}
	if clients == nil {
		clients = []model.Client{}
	}
	response.Success(c, clients)
}

// AddClientRequest 开户请求
type AddClientRequest struct {
	Code    string          `json:"code" binding:"required"`
	Name    string          `json:"name" binding:"required"`
	Email   string          `json:"email"`
	Phone   string          `json:"phone"`
	Credits decimal.Decimal `json:"credits"`
}

// AddClient 开户
// POST /api/v1/client/add
func (h *Handler) AddClient(c *gin.Context) {
	var req AddClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	client, err := h.clientService.Add(c.Request.Context(), &service.AddClientRequest{
		Code:    req.Code,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Credits: req.Credits,
	})
	respond(c, err, client)
}

// AdjustCreditsRequest 调额请求
type AdjustCreditsRequest struct {
	Code   string          `json:"code" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// AdjustCredits 调整余额（充值为正、扣减为负）
// POST /api/v1/client/credits
//
// 单次限额是表单侧策略，在这里执行，账本本身不做限制
func (h *Handler) AdjustCredits(c *gin.Context) {
	var req AdjustCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if limit := h.cfg.Business.CreditAdjustLimit; limit > 0 {
		if req.Amount.Abs().GreaterThan(decimal.NewFromFloat(limit)) {
			response.ParamError(c, "单次调整金额超过限额")
			return
		}
	}

	clients, err := h.clientService.AdjustCredits(c.Request.Context(), req.Code, req.Amount)
	respond(c, err, clients)
}

// GetHistory 消费历史与累计消费额
// GET /api/v1/client/history?code=xxx
func (h *Handler) GetHistory(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		response.ParamError(c, "code 参数不能为空")
		return
	}

	history, err := h.clientService.History(c.Request.Context(), code)
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, history)
}

// ============================================================
// 购买接口
// ============================================================

// PurchaseRequest 购买请求：商品名 -> 数量
type PurchaseRequest struct {
	ClientCode string         `json:"client_code" binding:"required"`
	Items      map[string]int `json:"items" binding:"required"`
}

// Purchase 执行购买
// POST /api/v1/purchase/execute
//
// 整单校验整单成交：余额不足或任一商品不存在时，余额和历史
// 都保持原样，响应里报出差额
func (h *Handler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.purchaseService.Purchase(c.Request.Context(), &service.PurchaseRequest{
		ClientCode: req.ClientCode,
		Items:      req.Items,
	})
	respond(c, err, result)
}
