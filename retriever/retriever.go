// Package retriever routes a natural-language question to the vector,
// document, and graph stores and collects snippets for synthesis.
package retriever

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/alantany/medrag/log"
)

// Mode selects which store(s) a query consults.
type Mode string

const (
	ModeVector   Mode = "vector"
	ModeDocument Mode = "document"
	ModeGraph    Mode = "graph"
	ModeHybrid   Mode = "hybrid"
)

// ParseMode validates a mode string; empty defaults to hybrid.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeVector, ModeDocument, ModeGraph, ModeHybrid:
		return Mode(s), nil
	case "":
		return ModeHybrid, nil
	default:
		return "", fmt.Errorf("retriever: unknown query mode %q", s)
	}
}

// QueryError reports which store a retrieval failure came from.
type QueryError struct {
	Store string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("retriever: %s store query failed: %v", e.Store, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Results collects per-store snippets for one question. A store that
// failed has an entry in Errors and contributes no snippets; the other
// stores' results stand.
type Results struct {
	Question string
	Mode     Mode
	Snippets map[string][]string
	Errors   map[string]error
}

// All returns every snippet across stores, vector first.
func (r *Results) All() []string {
	var out []string
	for _, storeName := range []string{"vector", "document", "graph"} {
		out = append(out, r.Snippets[storeName]...)
	}
	return out
}

// Empty reports whether no store returned a snippet.
func (r *Results) Empty() bool {
	return len(r.All()) == 0
}

// Common Chinese surnames, used to spot anonymized patient names of
// the 某某 form in questions.
var patientNamePattern = regexp.MustCompile(`([李王张刘陈杨黄周吴马蒲赵钱孙朱胡郭何高林罗郑梁谢宋唐许邓冯韩曹曾彭萧蔡潘田董袁于余叶蒋杜苏魏程吕丁沈任姚卢傅钟姜崔谭廖范汪陆金石戴贾韦夏邱方侯邹熊孟秦白江阎薛尹段雷黎史龙陶贺顾毛郝龚邵万严覃武莫孔向汤]某某)`)

// fullNamePattern catches "患者张三" style references. The name must
// end at a particle or punctuation so trailing question text is not
// swallowed into it.
var fullNamePattern = regexp.MustCompile(`患者([\p{Han}]{2,3}?)(?:的|有|是|在|患|因|[,,。、??!!::;;\s]|$)`)

// ExtractPatientName pulls a patient name out of a question so
// retrieval can filter to that patient. Returns "" when the question
// names nobody, which means search everything.
func ExtractPatientName(question string) string {
	if m := patientNamePattern.FindStringSubmatch(question); m != nil {
		return m[1]
	}
	if m := fullNamePattern.FindStringSubmatch(question); m != nil {
		return m[1]
	}
	return ""
}

// Router dispatches a question to the store retrievers per mode.
type Router struct {
	vector   *VectorRetriever
	document *DocumentRetriever
	graph    *GraphRetriever
	logger   log.Logger
}

// NewRouter wires the three retrievers. A nil logger falls back to the
// package default.
func NewRouter(v *VectorRetriever, d *DocumentRetriever, g *GraphRetriever, logger log.Logger) *Router {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Router{vector: v, document: d, graph: g, logger: logger}
}

// Search runs the question against the store(s) the mode selects.
// Hybrid queries the three stores concurrently and isolates per-store
// failures; synthesis happens only after every selected search is done.
func (r *Router) Search(ctx context.Context, question string, mode Mode) (*Results, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if mode == "" {
		mode = ModeHybrid
	}

	results := &Results{
		Question: question,
		Mode:     mode,
		Snippets: make(map[string][]string),
		Errors:   make(map[string]error),
	}

	type searchFn struct {
		store string
		run   func(context.Context, string) ([]string, error)
	}
	var fns []searchFn
	if mode == ModeVector || mode == ModeHybrid {
		fns = append(fns, searchFn{"vector", r.vector.Search})
	}
	if mode == ModeDocument || mode == ModeHybrid {
		fns = append(fns, searchFn{"document", r.document.Search})
	}
	if mode == ModeGraph || mode == ModeHybrid {
		fns = append(fns, searchFn{"graph", r.graph.Search})
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, fn := range fns {
		wg.Add(1)
		go func(fn searchFn) {
			defer wg.Done()
			snippets, err := fn.run(ctx, question)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				qerr := &QueryError{Store: fn.store, Err: err}
				r.logger.Warn("%v", qerr)
				results.Errors[fn.store] = qerr
				return
			}
			results.Snippets[fn.store] = snippets
		}(fn)
	}
	wg.Wait()

	return results, nil
}
