package listener

import (
	"errors"
	"fmt"
	"log/slog"

	"chatrouter/internal/dispatch"
	"chatrouter/internal/filter"
	"chatrouter/internal/keyword"
)

var (
	// SourceKey holds the file a listener was declared in.
	SourceKey = dispatch.NewAttributeKey[string]("source")
	// ActionKey holds the declared action.
	ActionKey = dispatch.NewAttributeKey[ActionSpec]("action")
)

// Compile builds the filters of decl. The first invalid filter aborts the
// declaration. A declaration without filters matches every event.
func Compile(decl Declaration) (*filter.Filters, error) {
	mode, err := filter.ParseMultiMatchType(decl.Mode)
	if err != nil {
		return nil, err
	}
	if len(decl.Filters) == 0 {
		return filter.MatchAll(), nil
	}

	items := make([]*filter.Filter, 0, len(decl.Filters))
	for i, fs := range decl.Filters {
		f, err := compileFilter(fs)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i+1, err)
		}
		items = append(items, f)
	}
	return filter.NewFilters(mode, items...)
}

func compileFilter(fs FilterSpec) (*filter.Filter, error) {
	strategy, err := keyword.ParseStrategy(fs.Strategy)
	if err != nil {
		return nil, err
	}
	kw := keyword.Empty
	if fs.Keyword != "" {
		kw, err = keyword.Compile(fs.Keyword, fs.PlainText)
		if err != nil {
			return nil, err
		}
	}
	return filter.New(filter.Config{
		Target:     filter.NewTarget(fs.Target),
		Keyword:    kw,
		Strategy:   strategy,
		IfNullPass: fs.IfNullPass,
	}), nil
}

// Register compiles decls and registers each valid one with reg. Invalid or
// duplicate declarations are skipped and reported in the joined error as
// *DeclarationError values; the others are still registered.
func Register(reg *dispatch.Registry, decls []Declaration, logger *slog.Logger) (int, error) {
	var (
		errs  []error
		seen  = make(map[string]string, len(decls))
		count int
	)
	for _, decl := range decls {
		if decl.Name != "" {
			if prev, dup := seen[decl.Name]; dup {
				errs = append(errs, &DeclarationError{Source: decl.Source, Listener: decl.Name, Err: fmt.Errorf("duplicate name, first declared in %s", prev)})
				continue
			}
			seen[decl.Name] = decl.Source
		}

		if err := register(reg, decl, logger); err != nil {
			errs = append(errs, &DeclarationError{Source: decl.Source, Listener: decl.Name, Err: err})
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}

func register(reg *dispatch.Registry, decl Declaration, logger *slog.Logger) error {
	fs, err := Compile(decl)
	if err != nil {
		return err
	}

	var keywords []*keyword.Keyword
	for _, f := range fs.Items() {
		if k := f.Keyword(); !k.IsEmpty() {
			keywords = append(keywords, k)
		}
	}
	h, err := newAction(decl, keywords, logger)
	if err != nil {
		return err
	}

	_, err = reg.Register(decl.Priority, fs, h,
		dispatch.WithName(decl.Name),
		dispatch.WithAttribute(SourceKey, decl.Source),
		dispatch.WithAttribute(ActionKey, decl.Action),
	)
	return err
}
