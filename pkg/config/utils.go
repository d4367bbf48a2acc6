package config

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"text/template"

	data "github.com/stumble/whittle/pkg/config/template"
	"github.com/stumble/whittle/pkg/passes"
)

// GenTemplate renders a starter plan listing every registered pass.
func GenTemplate(planName string) (string, error) {
	if !validName(planName) {
		return "", errors.New("Invalid plan name, use letters, digits, '-' and '_': " + planName)
	}
	t, err := template.New("planTmpl").Parse(data.GetPlanTemplate())
	if err != nil {
		return "", err
	}
	type passDoc struct {
		Name        string
		Description string
	}
	var docs []passDoc
	for _, name := range passes.Names() {
		docs = append(docs, passDoc{Name: name, Description: passes.Describe(name)})
	}
	buf := bytes.NewBufferString("")
	err = t.Execute(buf, struct {
		Name   string
		Passes []passDoc
	}{
		planName,
		docs,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func commaSplitList(str string) []string {
	strs := strings.Split(strings.Trim(strings.TrimSpace(str), ","), ",")
	for i := range strs {
		strs[i] = strings.TrimSpace(strs[i])
	}
	if len(strs) == 1 && strs[0] == "" {
		return []string{}
	}
	return strs
}

func splitPassArg(item string) (name, arg string) {
	if i := strings.IndexByte(item, ':'); i >= 0 {
		return strings.TrimSpace(item[:i]), strings.TrimSpace(item[i+1:])
	}
	return item, ""
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

func validName(str string) bool {
	return namePattern.MatchString(str)
}
