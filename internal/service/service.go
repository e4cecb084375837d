// Package service is the façade over the request codec, the rights
// engine and the planner: one call per CRUD operation, from URI string
// to serialized result.
package service

import (
	"context"
	"fmt"

	"github.com/damiencorpataux/relrest/internal/catalog"
	"github.com/damiencorpataux/relrest/internal/planner"
	"github.com/damiencorpataux/relrest/internal/request"
	"github.com/damiencorpataux/relrest/internal/rights"
	"github.com/damiencorpataux/relrest/internal/serialize"
)

// Service exposes the query language over one catalog, one rights table
// and one database session.
type Service struct {
	Catalog  *catalog.Catalog
	Rights   *rights.Rights
	DB       planner.DB
	Defaults request.Defaults
}

// New wires a service with the standard grammar defaults.
func New(c *catalog.Catalog, r *rights.Rights, db planner.DB) *Service {
	return &Service{Catalog: c, Rights: r, DB: db, Defaults: request.DefaultDefaults()}
}

func (s *Service) planner() *planner.Planner {
	return &planner.Planner{Catalog: s.Catalog, DB: s.DB}
}

func (s *Service) decode(op rights.Operation, uri string, roles []string) (*request.Request, error) {
	req, err := request.Decode(uri, s.Defaults)
	if err != nil {
		return nil, err
	}
	if err := s.Rights.Authorize(op, req, roles); err != nil {
		return nil, err
	}
	return req, nil
}

// Read decodes, authorizes and executes a read, returning the
// serialized result: a record, a list of records, grouped tuples or a
// count.
func (s *Service) Read(ctx context.Context, uri string, roles []string) (any, error) {
	req, err := s.decode(rights.Read, uri, roles)
	if err != nil {
		return nil, err
	}
	res, err := s.planner().Read(ctx, req)
	if err != nil {
		return nil, err
	}
	return serialize.Result(res), nil
}

// Create inserts the record under the URI's resource and returns the
// freshly read instance.
func (s *Service) Create(ctx context.Context, uri string, record map[string]any, roles []string) (any, error) {
	req, err := s.decode(rights.Create, uri, roles)
	if err != nil {
		return nil, err
	}
	id, err := s.planner().Create(ctx, req, record)
	if err != nil {
		return nil, err
	}
	fresh := *req
	fresh.ID = fmt.Sprint(id)
	res, err := s.planner().Read(ctx, &fresh)
	if err != nil {
		return nil, err
	}
	return serialize.Result(res), nil
}

// Update patches the identified record and returns the freshly read
// instance.
func (s *Service) Update(ctx context.Context, uri string, record map[string]any, roles []string) (any, error) {
	req, err := s.decode(rights.Update, uri, roles)
	if err != nil {
		return nil, err
	}
	if err := s.planner().Update(ctx, req, record); err != nil {
		return nil, err
	}
	res, err := s.planner().Read(ctx, req)
	if err != nil {
		return nil, err
	}
	return serialize.Result(res), nil
}

// Delete removes the identified record.
func (s *Service) Delete(ctx context.Context, uri string, roles []string) error {
	req, err := s.decode(rights.Delete, uri, roles)
	if err != nil {
		return err
	}
	return s.planner().Delete(ctx, req)
}
