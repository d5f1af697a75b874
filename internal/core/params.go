package core

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// Params holds named parameter values for {:name} placeholders.
//
//	db.QueryNamed(ctx, "SELECT * FROM users WHERE id = {:id}",
//	    stratum.Params{"id": 7})
type Params map[string]interface{}

var (
	// namedParamRe matches {:name} placeholders.
	namedParamRe = regexp.MustCompile(`\{:(\w+)\}`)

	// identTemplateRe matches {{table}} and [[column]] identifier
	// templates. Dots are allowed for schema-qualified names.
	identTemplateRe = regexp.MustCompile(`(\{\{[\w\-. ]+\}\}|\[\[[\w\-. ]+\]\])`)
)

// BindNamed rewrites a query with {:name} placeholders into positional
// form for the wrapper's dialect and resolves the parameter values. It
// also expands {{table}} and [[column]] templates into quoted
// identifiers, so the same statement text works on every backend:
//
//	SELECT [[name]] FROM {{users}} WHERE [[id]] = {:id}
//
// becomes SELECT "name" FROM "users" WHERE "id" = $1 on PostgreSQL and
// SELECT `name` FROM `users` WHERE `id` = ? on MySQL. A name appearing
// multiple times binds its value once per appearance. Missing names are
// an error.
func (w *Wrapper) BindNamed(query string, params Params) (string, []any, error) {
	var names []string
	count := 0
	rewritten := namedParamRe.ReplaceAllStringFunc(query, func(match string) string {
		count++
		names = append(names, match[2:len(match)-1])
		return w.dialect.Placeholder(count)
	})

	rewritten = identTemplateRe.ReplaceAllStringFunc(rewritten, func(match string) string {
		return w.quoteQualified(match[2 : len(match)-2])
	})

	args := make([]any, len(names))
	for i, name := range names {
		value, ok := params[name]
		if !ok {
			return "", nil, wrapErr(ErrQuery, "bind", fmt.Errorf("missing parameter: %s", name))
		}
		args[i] = value
	}
	return rewritten, args, nil
}

// quoteQualified quotes an identifier, treating dots as schema
// qualifiers so "public.users" quotes each part separately.
func (w *Wrapper) quoteQualified(identifier string) string {
	if !strings.Contains(identifier, ".") {
		return w.dialect.QuoteIdentifier(strings.TrimSpace(identifier))
	}
	parts := strings.Split(identifier, ".")
	for i, part := range parts {
		parts[i] = w.dialect.QuoteIdentifier(strings.TrimSpace(part))
	}
	return strings.Join(parts, ".")
}

// QueryNamed runs a read statement written with named parameters and
// identifier templates.
func (w *Wrapper) QueryNamed(ctx context.Context, query string, params Params) (*Cursor, error) {
	bound, args, err := w.BindNamed(query, params)
	if err != nil {
		return nil, err
	}
	if err := w.screen(bound); err != nil {
		return nil, err
	}
	return w.queryCursor(ctx, bound, args)
}

// ExecNamed runs a write statement written with named parameters and
// identifier templates.
func (w *Wrapper) ExecNamed(ctx context.Context, query string, params Params) (sql.Result, error) {
	bound, args, err := w.BindNamed(query, params)
	if err != nil {
		return nil, err
	}
	if err := w.screen(bound); err != nil {
		return nil, err
	}
	return w.exec(ctx, bound, args)
}
