package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/seantiz/mori/internal/model"
)

func TestListOperatorsEmpty(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/operators")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body listOperatorsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 0 || body.Operators == nil {
		t.Errorf("got total %d operators %v, want an empty list", body.Total, body.Operators)
	}
}

func TestListOperatorsInExecutionOrder(t *testing.T) {
	srv := newTestServer(t)
	registerOperator(t, srv.table, "o2", model.StatusNone)
	registerOperator(t, srv.table, "o1", model.StatusDevice)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/operators")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var body listOperatorsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 2 {
		t.Fatalf("total = %d, want 2", body.Total)
	}
	if body.Operators[0].Name != "o2" || body.Operators[1].Name != "o1" {
		t.Errorf("order = [%s %s], want [o2 o1]", body.Operators[0].Name, body.Operators[1].Name)
	}
	if got := body.Operators[1].Tensors["t"].Status; got != model.StatusDevice {
		t.Errorf("o1/t status = %s, want device", got)
	}
}

func TestGetOperator(t *testing.T) {
	srv := newTestServer(t)
	registerOperator(t, srv.table, "o1", model.StatusHost)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/operators/o1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var op model.OperatorStatus
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if op.Name != "o1" {
		t.Errorf("name = %q, want o1", op.Name)
	}
	if ts := op.Tensors["t"]; ts == nil || ts.Size != 1024 || ts.Status != model.StatusHost {
		t.Errorf("tensor t = %+v, want size 1024 on host", ts)
	}
}

func TestGetOperatorNotFound(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/operators/missing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
