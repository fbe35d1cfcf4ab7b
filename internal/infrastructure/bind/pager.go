package bind

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
)

// Pager recorre un listado paginado de Bind con $skip/$top al estilo de un
// bufio.Scanner: Next avanza, Record entrega el registro actual y Err reporta
// la primera falla. La iteración termina cuando una página llega incompleta.
type Pager struct {
	client *Client
	path   string
	query  url.Values

	page    []json.RawMessage
	idx     int
	skip    int
	done    bool
	err     error
	current json.RawMessage
}

// NewPager crea un paginador sobre un endpoint de listado. query puede traer
// $filter y $orderby; $skip y $top los administra el paginador.
func (c *Client) NewPager(path string, query url.Values) *Pager {
	q := url.Values{}
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return &Pager{client: c, path: path, query: q}
}

// Next obtiene el siguiente registro, pidiendo la página que haga falta.
func (p *Pager) Next(ctx context.Context) bool {
	if p.err != nil {
		return false
	}
	if p.idx < len(p.page) {
		p.current = p.page[p.idx]
		p.idx++
		return true
	}
	if p.done {
		return false
	}

	p.query.Set("$skip", strconv.Itoa(p.skip))
	p.query.Set("$top", strconv.Itoa(PageSize))
	raw, err := p.client.Get(ctx, p.path, p.query)
	if err != nil {
		p.err = err
		return false
	}
	records, err := decodeRecords(raw)
	if err != nil {
		p.err = err
		return false
	}
	if len(records) < PageSize {
		p.done = true
	}
	if len(records) == 0 {
		return false
	}
	p.page = records
	p.idx = 0
	p.skip += len(records)

	p.current = p.page[p.idx]
	p.idx++
	return true
}

// Record devuelve el registro posicionado por el último Next exitoso.
func (p *Pager) Record() json.RawMessage { return p.current }

// Err devuelve el error que detuvo la iteración, si lo hubo.
func (p *Pager) Err() error { return p.err }

// CollectAll agota el paginador y devuelve todos los registros en orden.
func (p *Pager) CollectAll(ctx context.Context) ([]json.RawMessage, error) {
	var out []json.RawMessage
	for p.Next(ctx) {
		out = append(out, p.Record())
	}
	return out, p.Err()
}
