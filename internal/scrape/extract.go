package scrape

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/covisearch/aggregator/internal/websource"
)

// Extract reads one value list per column selector from body and zips the
// columns into rows, stopping at the shortest column.
func Extract(ct websource.ContentType, body []byte, selectors map[string]string) ([]map[string]string, error) {
	var (
		columns map[string][]string
		err     error
	)
	switch ct {
	case websource.ContentJSON:
		columns, err = jsonColumns(body, selectors)
	case websource.ContentHTML:
		columns, err = htmlColumns(body, selectors)
	default:
		return nil, eris.Errorf("scrape: unsupported response content type %q", ct)
	}
	if err != nil {
		return nil, err
	}
	return zip(columns), nil
}

func zip(columns map[string][]string) []map[string]string {
	if len(columns) == 0 {
		return nil
	}
	n := -1
	for _, vals := range columns {
		if n < 0 || len(vals) < n {
			n = len(vals)
		}
	}
	rows := make([]map[string]string, n)
	for i := range rows {
		row := make(map[string]string, len(columns))
		for col, vals := range columns {
			row[col] = vals[i]
		}
		rows[i] = row
	}
	return rows
}

// jsonColumns evaluates selectors like "data[*].name": everything before the
// last dot selects parent nodes, "[*]" expanding arrays; the last segment is
// read from each parent, empty when absent.
func jsonColumns(body []byte, selectors map[string]string) (map[string][]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, eris.New("scrape: response is not valid json")
	}
	root := gjson.ParseBytes(body)
	parents := make(map[string][]gjson.Result)

	out := make(map[string][]string, len(selectors))
	for col, sel := range selectors {
		sel = strings.TrimPrefix(strings.TrimSpace(sel), "$.")
		parentPath, field := "", sel
		if i := strings.LastIndex(sel, "."); i >= 0 {
			parentPath, field = sel[:i], sel[i+1:]
		}

		nodes, ok := parents[parentPath]
		if !ok {
			nodes = jsonNodes(root, parentPath)
			parents[parentPath] = nodes
		}
		vals := make([]string, 0, len(nodes))
		for _, n := range nodes {
			vals = append(vals, child(n, field).String())
		}
		out[col] = vals
	}
	return out, nil
}

func jsonNodes(root gjson.Result, path string) []gjson.Result {
	nodes := []gjson.Result{root}
	if path != "" {
		for _, seg := range strings.Split(path, ".") {
			name, expand := strings.CutSuffix(seg, "[*]")
			next := make([]gjson.Result, 0, len(nodes))
			for _, n := range nodes {
				v := n
				if name != "" {
					v = child(n, name)
				}
				if expand {
					next = append(next, v.Array()...)
				} else if v.Exists() {
					next = append(next, v)
				}
			}
			nodes = next
		}
	}
	if len(nodes) == 1 && nodes[0].IsArray() {
		return nodes[0].Array()
	}
	return nodes
}

// child returns the member key of an object without interpreting gjson path
// syntax in key.
func child(n gjson.Result, key string) gjson.Result {
	var out gjson.Result
	n.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			out = v
			return false
		}
		return true
	})
	return out
}

var attrSuffix = regexp.MustCompile(`::attr\(([^)]+)\)$`)

// htmlColumns evaluates CSS selectors. A selector may end in "::text" (the
// default) or "::attr(name)".
func htmlColumns(body []byte, selectors map[string]string) (map[string][]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse html")
	}

	out := make(map[string][]string, len(selectors))
	for col, sel := range selectors {
		sel = strings.TrimSpace(sel)
		var attr string
		if m := attrSuffix.FindStringSubmatch(sel); m != nil {
			attr = m[1]
			sel = strings.TrimSpace(strings.TrimSuffix(sel, m[0]))
		} else {
			sel = strings.TrimSpace(strings.TrimSuffix(sel, "::text"))
		}

		var vals []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if attr != "" {
				v, _ := s.Attr(attr)
				vals = append(vals, strings.TrimSpace(v))
				return
			}
			vals = append(vals, strings.TrimSpace(s.Text()))
		})
		out[col] = vals
	}
	return out, nil
}

// FilterRows keeps the rows whose columns match every filter pattern,
// case-insensitively.
func FilterRows(rows []map[string]string, filters map[string]string) ([]map[string]string, error) {
	if len(filters) == 0 {
		return rows, nil
	}
	res := make(map[string]*regexp.Regexp, len(filters))
	for col, pattern := range filters {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "scrape: row filter for %s", col)
		}
		res[col] = re
	}

	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		keep := true
		for col, re := range res {
			if !re.MatchString(row[col]) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}
