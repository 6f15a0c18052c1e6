package filter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"memoir/internal/models"
	"memoir/internal/store"
)

// ErrInvalidFilter wraps every parse failure so callers can tell a bad filter
// string apart from backend errors.
var ErrInvalidFilter = errors.New("invalid filter")

// ParseMemoFilter turns a filter string such as
//
//	creator == "users/7" && visibilities == ["PUBLIC"] && tag_search == ["todo"]
//
// into memo find criteria. The grammar is a flat conjunction of
// `identifier == literal` comparisons. Unknown identifiers and unrecognized
// enum values are ignored rather than rejected; only a string that is not a
// conjunction of equality comparisons at all is a parse error.
func ParseMemoFilter(raw string) (*store.FindMemo, error) {
	find := &store.FindMemo{ExcludeComments: true}
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		return find, nil
	}

	env, err := cel.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("build filter env: %w", err)
	}
	// Parse without type checking: identifiers outside the recognized set
	// must not fail the whole filter
	ast, issues := env.Parse(normalized)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, issues.Err())
	}
	if err := extractConjuncts(ast.Expr(), find); err != nil {
		return nil, err
	}
	return find, nil
}

// extractConjuncts peels &&-joined comparisons off the expression tree,
// right-hand side first, until only single comparisons remain.
func extractConjuncts(expr *exprpb.Expr, find *store.FindMemo) error {
	if expr == nil {
		return errMalformed(expr)
	}
	call := expr.GetCallExpr()
	if call == nil {
		return errMalformed(expr)
	}
	switch call.Function {
	case "_&&_":
		if len(call.Args) != 2 {
			return errMalformed(expr)
		}
		if err := extractConjuncts(call.Args[1], find); err != nil {
			return err
		}
		return extractConjuncts(call.Args[0], find)
	case "_==_":
		return applyComparison(call, find)
	default:
		return errMalformed(expr)
	}
}

func errMalformed(expr *exprpb.Expr) error {
	return fmt.Errorf("%w: expected a conjunction of identifier == literal comparisons, got %s", ErrInvalidFilter, expr.String())
}

func applyComparison(call *exprpb.Expr_Call, find *store.FindMemo) error {
	if len(call.Args) != 2 {
		return fmt.Errorf("%w: malformed comparison", ErrInvalidFilter)
	}
	lhs, rhs := call.Args[0], call.Args[1]
	ident := lhs.GetIdentExpr()
	if ident == nil {
		ident = rhs.GetIdentExpr()
		rhs = lhs
	}
	if ident == nil {
		return fmt.Errorf("%w: comparison must name a field", ErrInvalidFilter)
	}

	switch ident.Name {
	case "creator":
		if s, ok := constString(rhs.GetConstExpr()); ok {
			if id, ok := parseCreatorName(s); ok {
				find.CreatorID = &id
			}
		}
	case "uid":
		if s, ok := constString(rhs.GetConstExpr()); ok {
			find.UID = &s
		}
	case "state":
		if s, ok := constString(rhs.GetConstExpr()); ok {
			if status := models.RowStatusFromString(s); status.IsValid() {
				find.RowStatus = &status
			}
		}
	case "visibilities":
		for _, raw := range constStringList(rhs) {
			if v := models.VisibilityFromString(raw); v.IsValid() {
				find.VisibilityList = append(find.VisibilityList, v)
			}
		}
	case "content_search":
		find.ContentSearch = append(find.ContentSearch, constStringList(rhs)...)
	case "tag_search":
		if tags := constStringList(rhs); len(tags) > 0 {
			payload := ensurePayloadFind(find)
			payload.TagSearch = append(payload.TagSearch, tags...)
		}
	case "order_by_pinned":
		if v, ok := constBool(rhs.GetConstExpr()); ok {
			find.OrderByPinned = v
		}
	case "display_time_before":
		if ts, ok := constInt64(rhs.GetConstExpr()); ok {
			t := time.Unix(ts, 0).UTC()
			find.CreateTimeBefore = &t
		}
	case "display_time_after":
		if ts, ok := constInt64(rhs.GetConstExpr()); ok {
			t := time.Unix(ts, 0).UTC()
			find.CreateTimeAfter = &t
		}
	case "random":
		if v, ok := constBool(rhs.GetConstExpr()); ok {
			find.Random = v
		}
	case "limit":
		if v, ok := constInt64(rhs.GetConstExpr()); ok && v > 0 && v <= math.MaxInt32 {
			limit := int(v)
			find.Limit = &limit
		}
	case "include_comments":
		if v, ok := constBool(rhs.GetConstExpr()); ok && v {
			find.ExcludeComments = false
		}
	case "has_link":
		if v, ok := constBool(rhs.GetConstExpr()); ok && v {
			ensurePayloadFind(find).HasLink = true
		}
	case "has_task_list":
		if v, ok := constBool(rhs.GetConstExpr()); ok && v {
			ensurePayloadFind(find).HasTaskList = true
		}
	case "has_code":
		if v, ok := constBool(rhs.GetConstExpr()); ok && v {
			ensurePayloadFind(find).HasCode = true
		}
	case "has_incomplete_tasks":
		if v, ok := constBool(rhs.GetConstExpr()); ok && v {
			ensurePayloadFind(find).HasIncompleteTasks = true
		}
	}
	// fields outside the recognized set add no constraint
	return nil
}

func ensurePayloadFind(find *store.FindMemo) *store.FindMemoPayload {
	if find.PayloadFind == nil {
		find.PayloadFind = &store.FindMemoPayload{}
	}
	return find.PayloadFind
}

func parseCreatorName(name string) (int64, bool) {
	raw, ok := strings.CutPrefix(name, "users/")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func constStringList(expr *exprpb.Expr) []string {
	list := expr.GetListExpr()
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list.Elements))
	for _, element := range list.Elements {
		if s, ok := constString(element.GetConstExpr()); ok {
			out = append(out, s)
		}
	}
	return out
}

func constString(c *exprpb.Constant) (string, bool) {
	if c == nil {
		return "", false
	}
	switch v := c.ConstantKind.(type) {
	case *exprpb.Constant_StringValue:
		return v.StringValue, true
	default:
		return "", false
	}
}

func constBool(c *exprpb.Constant) (bool, bool) {
	if c == nil {
		return false, false
	}
	switch v := c.ConstantKind.(type) {
	case *exprpb.Constant_BoolValue:
		return v.BoolValue, true
	default:
		return false, false
	}
}

func constInt64(c *exprpb.Constant) (int64, bool) {
	if c == nil {
		return 0, false
	}
	switch v := c.ConstantKind.(type) {
	case *exprpb.Constant_Int64Value:
		return v.Int64Value, true
	case *exprpb.Constant_Uint64Value:
		if v.Uint64Value > math.MaxInt64 {
			return 0, false
		}
		return int64(v.Uint64Value), true
	default:
		return 0, false
	}
}
