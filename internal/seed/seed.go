// Package seed loads consultant fixtures into the directory.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type File struct {
	Consultants []Consultant `yaml:"consultants"`
}

type Consultant struct {
	Code                 string `yaml:"code"`
	Name                 string `yaml:"name"`
	Email                string `yaml:"email"`
	Status               string `yaml:"status"`
	CommissionPercentage string `yaml:"commission_percentage"`
	ReportsEnabled       *bool  `yaml:"reports_enabled"`
}

type Result struct {
	Upserted []string
}

// Parse reads a fixture document. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &f, nil
}

func LoadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(raw))
}

// Apply upserts every consultant by code. It stops at the first invalid entry;
// entries before it stay applied.
func Apply(ctx context.Context, dir consultantdomain.Directory, f *File) (*Result, error) {
	res := &Result{}
	for i, c := range f.Consultants {
		req, err := c.request()
		if err != nil {
			return res, fmt.Errorf("consultant %d (%s): %w", i+1, c.Code, err)
		}
		saved, err := dir.Upsert(ctx, req)
		if err != nil {
			return res, fmt.Errorf("consultant %d (%s): %w", i+1, c.Code, err)
		}
		res.Upserted = append(res.Upserted, saved.Code)
	}
	return res, nil
}

func (c Consultant) request() (consultantdomain.UpsertRequest, error) {
	pct := decimal.Zero
	if raw := strings.TrimSpace(c.CommissionPercentage); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return consultantdomain.UpsertRequest{}, consultantdomain.ErrInvalidPercent
		}
		pct = parsed
	}
	return consultantdomain.UpsertRequest{
		Code:                 c.Code,
		Name:                 c.Name,
		Email:                c.Email,
		Status:               consultantdomain.Status(strings.ToLower(strings.TrimSpace(c.Status))),
		CommissionPercentage: pct,
		ReportsEnabled:       c.ReportsEnabled,
	}, nil
}
