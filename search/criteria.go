package search

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const (
	// MaxRestrictions 一个查询最多允许的限制条件数
	MaxRestrictions = 5
	// DefaultMaxResults 默认分页大小
	DefaultMaxResults = 25
)

var (
	ErrIllegalState    = errors.New("illegal state")
	ErrNilArgument     = errors.New("nil argument")
	ErrIllegalArgument = errors.New("illegal argument")
)

// Definition 查询作用的实体定义，由 schema.DataDefinition 实现
type Definition interface {
	PluginIdentifier() string
	Name() string
	IdentifierField() string
	TableName() string
}

// Order 排序
type Order struct {
	field     string
	ascending bool
}

func Asc(field string) *Order {
	return &Order{field: field, ascending: true}
}

func Desc(field string) *Order {
	return &Order{field: field, ascending: false}
}

func (o *Order) Field() string   { return o.field }
func (o *Order) Ascending() bool { return o.ascending }

func (o *Order) String() string {
	if o.ascending {
		return o.field + " asc"
	}
	return o.field + " desc"
}

// GridDefinition 结果形状选择器，Columns 为空表示全部字段
type GridDefinition struct {
	Name    string
	Columns []string
}

// Criteria 不可变的查询描述，每次修改返回新的快照
type Criteria struct {
	definition   Definition
	restrictions []Restriction
	order        *Order
	firstResult  int
	maxResults   int
	grid         *GridDefinition
}

// NewCriteria 默认条件：从 0 开始，每页 25 条，按 id 字段升序，无限制条件，无 grid
func NewCriteria(definition Definition) *Criteria {
	return &Criteria{
		definition: definition,
		order:      Asc(definition.IdentifierField()),
		maxResults: DefaultMaxResults,
	}
}

func (c *Criteria) clone() *Criteria {
	n := *c
	n.restrictions = append([]Restriction(nil), c.restrictions...)
	return &n
}

// RestrictedWith 追加限制条件，超过 MaxRestrictions 返回 ErrIllegalState
func (c *Criteria) RestrictedWith(r Restriction) (*Criteria, error) {
	if err := checkRestriction(r); err != nil {
		return c, err
	}
	if len(c.restrictions) >= MaxRestrictions {
		return c, errors.Wrapf(ErrIllegalState, "too many restrictions, max %d", MaxRestrictions)
	}
	n := c.clone()
	n.restrictions = append(n.restrictions, r)
	return n, nil
}

// OrderBy 替换排序，order 不能为空
func (c *Criteria) OrderBy(order *Order) (*Criteria, error) {
	if order == nil {
		return c, errors.Wrap(ErrNilArgument, "order is nil")
	}
	n := c.clone()
	n.order = order
	return n, nil
}

func (c *Criteria) WithFirstResult(firstResult int) (*Criteria, error) {
	if firstResult < 0 {
		return c, errors.Wrapf(ErrIllegalArgument, "firstResult %d is negative", firstResult)
	}
	n := c.clone()
	n.firstResult = firstResult
	return n, nil
}

func (c *Criteria) WithMaxResults(maxResults int) (*Criteria, error) {
	if maxResults <= 0 {
		return c, errors.Wrapf(ErrIllegalArgument, "maxResults %d must be positive", maxResults)
	}
	n := c.clone()
	n.maxResults = maxResults
	return n, nil
}

func (c *Criteria) WithGridDefinition(grid *GridDefinition) *Criteria {
	n := c.clone()
	if grid == nil {
		n.grid = nil
		return n
	}
	n.grid = &GridDefinition{Name: grid.Name, Columns: append([]string(nil), grid.Columns...)}
	return n
}

func (c *Criteria) DataDefinition() Definition {
	return c.definition
}

func (c *Criteria) FirstResult() int {
	return c.firstResult
}

func (c *Criteria) MaxResults() int {
	return c.maxResults
}

func (c *Criteria) Order() *Order {
	return c.order
}

func (c *Criteria) Restrictions() []Restriction {
	return append([]Restriction(nil), c.restrictions...)
}

func (c *Criteria) GridDefinition() *GridDefinition {
	if c.grid == nil {
		return nil
	}
	return &GridDefinition{Name: c.grid.Name, Columns: append([]string(nil), c.grid.Columns...)}
}

// Filter 所有限制条件的 and 组合
func (c *Criteria) Filter() Restriction {
	return And(c.restrictions...)
}

func (c *Criteria) String() string {
	restrictions := make([]string, 0, len(c.restrictions))
	for _, r := range c.restrictions {
		restrictions = append(restrictions, fmt.Sprintf("%s%v", r.Operator(), r.Fields()))
	}
	return fmt.Sprintf("Criteria{%s.%s, restrictions=[%s], order=%s, first=%d, max=%d}",
		c.definition.PluginIdentifier(), c.definition.Name(), strings.Join(restrictions, ", "),
		c.order, c.firstResult, c.maxResults)
}

// ResultPage 一页查询结果以及满足条件的总数
type ResultPage[T any] struct {
	Total    int64
	Entities []T
}

func NewResultPage[T any](total int64, entities []T) *ResultPage[T] {
	return &ResultPage[T]{Total: total, Entities: entities}
}
