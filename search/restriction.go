package search

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Operator 限制条件的操作符
type Operator string

const (
	OpEq        Operator = "eq"
	OpNe        Operator = "ne"
	OpGt        Operator = "gt"
	OpGe        Operator = "ge"
	OpLt        Operator = "lt"
	OpLe        Operator = "le"
	OpLike      Operator = "like"
	OpIn        Operator = "in"
	OpIsNull    Operator = "isNull"
	OpIsNotNull Operator = "isNotNull"
	OpAnd       Operator = "and"
	OpOr        Operator = "or"
	OpNot       Operator = "not"
)

// Restriction 查询条件节点，每个节点可以翻译为不同后端的查询
// 叶子节点的字段、操作符和操作数是导出的结构体字段，组合节点通过 Fields 汇总子节点的字段
type Restriction interface {
	Operator() Operator
	// Fields 条件涉及的字段
	Fields() []string

	ToSQL() (string, []any, error)
	ToES() map[string]any
	ToMongo() (map[string]any, error)
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// CheckField 字段名只能包含字母、数字、下划线和点
func CheckField(field string) error {
	if !fieldPattern.MatchString(field) {
		return errors.Wrapf(ErrIllegalArgument, "invalid field name %q", field)
	}
	return nil
}

// Eq 等值条件，字符串中包含 % 或 * 时按 LIKE 处理
func Eq(field string, value any) Restriction {
	if s, ok := value.(string); ok && strings.ContainsAny(s, "%*") {
		return Like(field, s)
	}
	return &CompareRestriction{Field: field, Op: OpEq, Value: value}
}

func Ne(field string, value any) Restriction {
	return &CompareRestriction{Field: field, Op: OpNe, Value: value}
}

func Gt(field string, value any) Restriction {
	return &CompareRestriction{Field: field, Op: OpGt, Value: value}
}

func Ge(field string, value any) Restriction {
	return &CompareRestriction{Field: field, Op: OpGe, Value: value}
}

func Lt(field string, value any) Restriction {
	return &CompareRestriction{Field: field, Op: OpLt, Value: value}
}

func Le(field string, value any) Restriction {
	return &CompareRestriction{Field: field, Op: OpLe, Value: value}
}

// Like 模式匹配，% 和 * 匹配任意字符串，_ 匹配单个字符
func Like(field string, pattern string) Restriction {
	return &LikeRestriction{Field: field, Pattern: strings.ReplaceAll(pattern, "*", "%")}
}

func In(field string, values ...any) Restriction {
	return &InRestriction{Field: field, Values: values}
}

func IsNull(field string) Restriction {
	return &NullRestriction{Field: field, Null: true}
}

func IsNotNull(field string) Restriction {
	return &NullRestriction{Field: field, Null: false}
}

// IDEq 数据定义的 id 字段等于 id
func IDEq(def Definition, id int64) Restriction {
	return &CompareRestriction{Field: def.IdentifierField(), Op: OpEq, Value: id}
}

// BelongsTo 引用字段指向 id
func BelongsTo(field string, id int64) Restriction {
	return &CompareRestriction{Field: field, Op: OpEq, Value: id}
}

// And 忽略 nil 子条件
func And(restrictions ...Restriction) Restriction {
	return &LogicalRestriction{Op: OpAnd, Children: compact(restrictions)}
}

// Or 忽略 nil 子条件
func Or(restrictions ...Restriction) Restriction {
	return &LogicalRestriction{Op: OpOr, Children: compact(restrictions)}
}

func Not(restriction Restriction) Restriction {
	return &NotRestriction{Child: restriction}
}

// CompareRestriction 比较条件
type CompareRestriction struct {
	Field string
	Op    Operator
	Value any
}

var sqlOperators = map[Operator]string{OpEq: "=", OpNe: "<>", OpGt: ">", OpGe: ">=", OpLt: "<", OpLe: "<="}
var mongoOperators = map[Operator]string{OpNe: "$ne", OpGt: "$gt", OpGe: "$gte", OpLt: "$lt", OpLe: "$lte"}
var esOperators = map[Operator]string{OpGt: "gt", OpGe: "gte", OpLt: "lt", OpLe: "lte"}

func (r *CompareRestriction) Operator() Operator { return r.Op }
func (r *CompareRestriction) Fields() []string   { return []string{r.Field} }

func (r *CompareRestriction) ToSQL() (string, []any, error) {
	if err := CheckField(r.Field); err != nil {
		return "", nil, err
	}
	op, ok := sqlOperators[r.Op]
	if !ok {
		return "", nil, errors.Wrapf(ErrIllegalArgument, "unsupported operator %q", r.Op)
	}
	return fmt.Sprintf("%s %s ?", r.Field, op), []any{r.Value}, nil
}

func (r *CompareRestriction) ToES() map[string]any {
	term := map[string]any{"term": map[string]any{r.Field: r.Value}}
	switch r.Op {
	case OpEq:
		return term
	case OpNe:
		return map[string]any{"bool": map[string]any{"must_not": []any{term}}}
	}
	return map[string]any{
		"range": map[string]any{
			r.Field: map[string]any{esOperators[r.Op]: r.Value},
		},
	}
}

func (r *CompareRestriction) ToMongo() (map[string]any, error) {
	if r.Op == OpEq {
		return map[string]any{r.Field: r.Value}, nil
	}
	op, ok := mongoOperators[r.Op]
	if !ok {
		return nil, errors.Wrapf(ErrIllegalArgument, "unsupported operator %q", r.Op)
	}
	return map[string]any{r.Field: map[string]any{op: r.Value}}, nil
}

// LikeRestriction SQL 风格的模式匹配
type LikeRestriction struct {
	Field   string
	Pattern string
}

func (r *LikeRestriction) Operator() Operator { return OpLike }
func (r *LikeRestriction) Fields() []string   { return []string{r.Field} }

func (r *LikeRestriction) ToSQL() (string, []any, error) {
	if err := CheckField(r.Field); err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s LIKE ?", r.Field), []any{r.Pattern}, nil
}

func (r *LikeRestriction) ToES() map[string]any {
	wildcard := strings.NewReplacer("%", "*", "_", "?").Replace(r.Pattern)
	return map[string]any{"wildcard": map[string]any{r.Field: wildcard}}
}

func (r *LikeRestriction) ToMongo() (map[string]any, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, ch := range r.Pattern {
		switch ch {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return map[string]any{r.Field: map[string]any{"$regex": b.String()}}, nil
}

// InRestriction 字段值属于集合
type InRestriction struct {
	Field  string
	Values []any
}

func (r *InRestriction) Operator() Operator { return OpIn }
func (r *InRestriction) Fields() []string   { return []string{r.Field} }

func (r *InRestriction) ToSQL() (string, []any, error) {
	if err := CheckField(r.Field); err != nil {
		return "", nil, err
	}
	if len(r.Values) == 0 {
		return "1=0", nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(r.Values)), ", ")
	return fmt.Sprintf("%s IN (%s)", r.Field, placeholders), append([]any(nil), r.Values...), nil
}

func (r *InRestriction) ToES() map[string]any {
	return map[string]any{"terms": map[string]any{r.Field: r.Values}}
}

func (r *InRestriction) ToMongo() (map[string]any, error) {
	return map[string]any{r.Field: map[string]any{"$in": r.Values}}, nil
}

// NullRestriction 字段为空或者不为空
type NullRestriction struct {
	Field string
	Null  bool
}

func (r *NullRestriction) Operator() Operator {
	if r.Null {
		return OpIsNull
	}
	return OpIsNotNull
}

func (r *NullRestriction) Fields() []string { return []string{r.Field} }

func (r *NullRestriction) ToSQL() (string, []any, error) {
	if err := CheckField(r.Field); err != nil {
		return "", nil, err
	}
	if r.Null {
		return fmt.Sprintf("%s IS NULL", r.Field), nil, nil
	}
	return fmt.Sprintf("%s IS NOT NULL", r.Field), nil, nil
}

func (r *NullRestriction) ToES() map[string]any {
	exists := map[string]any{"exists": map[string]any{"field": r.Field}}
	if r.Null {
		return map[string]any{"bool": map[string]any{"must_not": []any{exists}}}
	}
	return exists
}

func (r *NullRestriction) ToMongo() (map[string]any, error) {
	if r.Null {
		return map[string]any{r.Field: map[string]any{"$eq": nil}}, nil
	}
	return map[string]any{r.Field: map[string]any{"$ne": nil}}, nil
}

// LogicalRestriction and / or 组合
type LogicalRestriction struct {
	Op       Operator
	Children []Restriction
}

func (r *LogicalRestriction) Operator() Operator { return r.Op }

func compact(restrictions []Restriction) []Restriction {
	result := make([]Restriction, 0, len(restrictions))
	for _, r := range restrictions {
		if r != nil {
			result = append(result, r)
		}
	}
	return result
}

func (r *LogicalRestriction) Fields() []string {
	var fields []string
	for _, child := range compact(r.Children) {
		fields = append(fields, child.Fields()...)
	}
	return fields
}

func (r *LogicalRestriction) ToSQL() (string, []any, error) {
	if len(compact(r.Children)) == 0 {
		if r.Op == OpOr {
			return "1=0", nil, nil
		}
		return "1=1", nil, nil
	}

	sep := " AND "
	if r.Op == OpOr {
		sep = " OR "
	}

	var conditions []string
	var args []any
	for _, child := range compact(r.Children) {
		sql, childArgs, err := child.ToSQL()
		if err != nil {
			return "", nil, err
		}
		conditions = append(conditions, sql)
		args = append(args, childArgs...)
	}
	if len(conditions) == 1 {
		return conditions[0], args, nil
	}
	return "(" + strings.Join(conditions, sep) + ")", args, nil
}

func (r *LogicalRestriction) ToES() map[string]any {
	children := compact(r.Children)
	if len(children) == 0 && r.Op == OpAnd {
		return map[string]any{"match_all": map[string]any{}}
	}

	clauses := make([]any, 0, len(children))
	for _, child := range children {
		clauses = append(clauses, child.ToES())
	}
	if r.Op == OpOr {
		return map[string]any{"bool": map[string]any{"should": clauses, "minimum_should_match": 1}}
	}
	return map[string]any{"bool": map[string]any{"must": clauses}}
}

func (r *LogicalRestriction) ToMongo() (map[string]any, error) {
	children := compact(r.Children)
	if len(children) == 0 {
		if r.Op == OpOr {
			return map[string]any{"_id": map[string]any{"$exists": false}}, nil
		}
		return map[string]any{}, nil
	}

	clauses := make([]any, 0, len(children))
	for _, child := range children {
		clause, err := child.ToMongo()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	if r.Op == OpOr {
		return map[string]any{"$or": clauses}, nil
	}
	return map[string]any{"$and": clauses}, nil
}

// NotRestriction 取反，Child 为 nil 时不能翻译为查询
type NotRestriction struct {
	Child Restriction
}

func (r *NotRestriction) Operator() Operator { return OpNot }

func (r *NotRestriction) Fields() []string {
	if r.Child == nil {
		return nil
	}
	return r.Child.Fields()
}

func (r *NotRestriction) ToSQL() (string, []any, error) {
	if r.Child == nil {
		return "", nil, errors.Wrap(ErrNilArgument, "not: restriction is nil")
	}
	sql, args, err := r.Child.ToSQL()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", args, nil
}

// ToES 没有子条件时不匹配任何文档
func (r *NotRestriction) ToES() map[string]any {
	child := map[string]any{"match_all": map[string]any{}}
	if r.Child != nil {
		child = r.Child.ToES()
	}
	return map[string]any{"bool": map[string]any{"must_not": []any{child}}}
}

func (r *NotRestriction) ToMongo() (map[string]any, error) {
	if r.Child == nil {
		return nil, errors.Wrap(ErrNilArgument, "not: restriction is nil")
	}
	clause, err := r.Child.ToMongo()
	if err != nil {
		return nil, err
	}
	return map[string]any{"$nor": []any{clause}}, nil
}

// checkRestriction 检查条件树中没有缺失的子条件
func checkRestriction(r Restriction) error {
	switch n := r.(type) {
	case nil:
		return errors.Wrap(ErrNilArgument, "restriction is nil")
	case *NotRestriction:
		if n == nil || n.Child == nil {
			return errors.Wrap(ErrNilArgument, "not: restriction is nil")
		}
		return checkRestriction(n.Child)
	case *LogicalRestriction:
		if n == nil {
			return errors.Wrap(ErrNilArgument, "restriction is nil")
		}
		for _, child := range compact(n.Children) {
			if err := checkRestriction(child); err != nil {
				return err
			}
		}
	}
	return nil
}
