package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"possystem/internal/model"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 单文件 JSON 存储
// ============================================================================
//
// 客户账本和商品目录整体存放在一个 JSON 文件里，每次变更整体重写。
// 读写规则：
//   1. 加载永不失败：文件缺失/为空/损坏时回退到内置默认数据集
//   2. 首次加载缺失文件时，把默认数据集落盘
//   3. 写入采用"临时文件 + rename"，读方看不到半写状态
//   4. 落盘失败不回滚内存变更，返回 ErrPersistFailed 由调用方提示，
//      下一次成功落盘会把全量状态补齐
//
// ============================================================================

// ErrPersistFailed 内存变更已生效但落盘失败
var ErrPersistFailed = errors.New("数据落盘失败")

// Data 存储文件的完整结构：两个集合加各自的自增序列和发件箱
type Data struct {
	ClientSeq  int64               `json:"client_seq"`
	ProductSeq int64               `json:"product_seq"`
	EventSeq   int64               `json:"event_seq"`
	Clients    []model.Client      `json:"clients"`
	Products   []model.Product     `json:"products"`
	Outbox     []model.OutboxEvent `json:"outbox"`
}

// DefaultData 内置默认数据集：一个示例客户和一份基础商品单
func DefaultData() *Data {
	return &Data{
		ClientSeq:  1,
		ProductSeq: 3,
		Clients: []model.Client{
			{
				ID:      1,
				Code:    "10",
				Name:    "edu",
				Email:   "edu@edu.ro",
				Phone:   "1234567890",
				Credits: decimal.NewFromInt(100),
				History: []model.PurchaseRecord{},
			},
		},
		Products: []model.Product{
			{ID: 1, Name: "Espresso", Price: decimal.NewFromInt(8)},
			{ID: 2, Name: "Mocha", Price: decimal.NewFromInt(14)},
			{ID: 3, Name: "Latte", Price: decimal.NewFromInt(10)},
		},
		Outbox: []model.OutboxEvent{},
	}
}

// Store 进程内共享的存储实例，进程启动时打开一次，关闭时冲刷
type Store struct {
	path  string
	mu    sync.RWMutex
	data  *Data
	dirty bool // 内存状态领先于磁盘
}

// Open 打开存储文件
// 文件缺失、为空或无法解析都按可恢复情况处理，绝不向调用方抛致命错误
func Open(path string) *Store {
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.data = DefaultData()
		// 首次启动：把默认数据集落盘
		if perr := s.persist(); perr != nil {
			log.Printf("[Store] 初始化数据文件失败: %v", perr)
			s.dirty = true
		}
		return s
	case err != nil:
		log.Printf("[Store] 读取数据文件失败，使用默认数据集: %v", err)
		s.data = DefaultData()
		return s
	}

	if len(raw) == 0 {
		s.data = DefaultData()
		if perr := s.persist(); perr != nil {
			log.Printf("[Store] 初始化数据文件失败: %v", perr)
			s.dirty = true
		}
		return s
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Printf("[Store] 数据文件损坏，使用默认数据集: %v", err)
		s.data = DefaultData()
		return s
	}
	if data.Clients == nil {
		data.Clients = []model.Client{}
	}
	if data.Products == nil {
		data.Products = []model.Product{}
	}
	if data.Outbox == nil {
		data.Outbox = []model.OutboxEvent{}
	}
	s.data = &data
	return s
}

// View 只读访问当前快照
func (s *Store) View(fn func(d *Data)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

// Update 读-改-写：fn 在数据副本上修改，成功后整体替换并落盘
//
// 【关键点】fn 返回错误时副本被丢弃，内存和磁盘都不发生任何变化；
// fn 成功但落盘失败时内存变更保留，返回 ErrPersistFailed
func (s *Store) Update(fn func(d *Data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work, err := clone(s.data)
	if err != nil {
		return fmt.Errorf("复制存储状态失败: %w", err)
	}

	if err := fn(work); err != nil {
		return err
	}

	s.data = work
	if err := s.persist(); err != nil {
		s.dirty = true
		log.Printf("[Store] 落盘失败，内存状态领先于磁盘: %v", err)
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	s.dirty = false
	return nil
}

// Close 关闭前冲刷一次；仅在内存领先磁盘时重写
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	if err := s.persist(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	s.dirty = false
	return nil
}

// persist 整体写盘：先写同目录临时文件，再原子替换
func (s *Store) persist() error {
	raw, err := json.MarshalIndent(s.data, "", "    ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".pos-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// clone 深拷贝存储状态，保证 fn 失败时不污染在用快照
func clone(d *Data) (*Data, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out Data
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out.Clients == nil {
		out.Clients = []model.Client{}
	}
	if out.Products == nil {
		out.Products = []model.Product{}
	}
	if out.Outbox == nil {
		out.Outbox = []model.OutboxEvent{}
	}
	return &out, nil
}
