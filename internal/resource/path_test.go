package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func docFromYAML(t *testing.T, text string) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(text), &doc))
	return doc
}

func TestLookup(t *testing.T) {
	doc := docFromYAML(t, `
apiVersion: apps/v1
kind: Deployment
spec:
  replicas: 2
  template:
    spec:
      containers:
        - name: server
          image: adservice:v0.8.0
          livenessProbe:
            grpc:
              port: 9555
      nodeSelector: {}
      tolerations: []
`)

	tests := []struct {
		name        string
		path        string
		wantPresent bool
		wantData    any
	}{
		{
			name:        "top level scalar",
			path:        "kind",
			wantPresent: true,
			wantData:    "Deployment",
		},
		{
			name:        "nested scalar",
			path:        "spec.replicas",
			wantPresent: true,
			wantData:    2,
		},
		{
			name:        "indexed element field",
			path:        "spec.template.spec.containers[0].name",
			wantPresent: true,
			wantData:    "server",
		},
		{
			name:        "mapping under an indexed element",
			path:        "spec.template.spec.containers[0].livenessProbe.grpc.port",
			wantPresent: true,
			wantData:    9555,
		},
		{
			name:        "missing key",
			path:        "spec.strategy",
			wantPresent: false,
		},
		{
			name:        "missing key below a missing parent",
			path:        "spec.template.metadata.labels.app",
			wantPresent: false,
		},
		{
			name:        "index out of range",
			path:        "spec.template.spec.containers[3].name",
			wantPresent: false,
		},
		{
			name:        "empty mapping counts as absent",
			path:        "spec.template.spec.nodeSelector",
			wantPresent: false,
		},
		{
			name:        "empty sequence counts as absent",
			path:        "spec.template.spec.tolerations",
			wantPresent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Lookup(doc, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPresent, v.Present)
			if tt.wantPresent {
				assert.Equal(t, tt.wantData, v.Data)
			}
		})
	}
}

func TestLookupNilDocument(t *testing.T) {
	v, err := Lookup(nil, "spec.replicas")
	require.NoError(t, err)
	assert.False(t, v.Present)
}

func TestLookupShapeConflict(t *testing.T) {
	doc := docFromYAML(t, `
spec:
  ports: all
  selector:
    app: frontend
  containers:
    - server
`)

	tests := []struct {
		name string
		path string
	}{
		{
			name: "index into a scalar",
			path: "spec.ports[0].port",
		},
		{
			name: "key under a scalar",
			path: "spec.ports.name",
		},
		{
			name: "key under a scalar leaf",
			path: "spec.selector.app.extra",
		},
		{
			name: "key under a sequence",
			path: "spec.containers.name",
		},
		{
			name: "index into a mapping",
			path: "spec.selector[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lookup(doc, tt.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrShapeConflict)
		})
	}
}

func TestLookupBadPath(t *testing.T) {
	doc := docFromYAML(t, "kind: Service")

	tests := []struct {
		name string
		path string
	}{
		{
			name: "unterminated index",
			path: "spec.containers[0",
		},
		{
			name: "non numeric index",
			path: "spec.containers[x]",
		},
		{
			name: "empty path",
			path: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lookup(doc, tt.path)
			assert.Error(t, err)
		})
	}
}

func TestHas(t *testing.T) {
	doc := docFromYAML(t, `
spec:
  replicas: 2
  strategy: {}
`)

	assert.True(t, Has(doc, "spec.replicas"))
	assert.False(t, Has(doc, "spec.minReadySeconds"))
	assert.False(t, Has(doc, "spec.strategy"))

	// Shape conflicts read as absence here; Lookup reports them.
	assert.False(t, Has(doc, "spec.replicas.nested"))
}

func TestNullKey(t *testing.T) {
	doc := docFromYAML(t, `
spec:
  ports:
  type: ClusterIP
  strategy: {}
  tolerations: []
`)

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "stripped directive leaves null", path: "spec.ports", want: true},
		{name: "scalar value", path: "spec.type", want: false},
		{name: "empty mapping is authored", path: "spec.strategy", want: false},
		{name: "empty sequence is authored", path: "spec.tolerations", want: false},
		{name: "missing key", path: "spec.clusterIP", want: false},
		{name: "missing parent", path: "status.ports", want: false},
		{name: "bad path", path: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NullKey(doc, tt.path))
		})
	}
}

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{name: "nil", value: nil, want: true},
		{name: "empty mapping", value: map[string]any{}, want: true},
		{name: "empty sequence", value: []any{}, want: true},
		{name: "zero int", value: 0, want: false},
		{name: "empty string", value: "", want: false},
		{name: "false", value: false, want: false},
		{name: "populated mapping", value: map[string]any{"app": "frontend"}, want: false},
		{name: "populated sequence", value: []any{"a"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEmpty(tt.value))
		})
	}
}
