package values

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartfold/chartfold/internal/resource"
)

const cartDeployment = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: {{ include "demo.fullname" . }}-cartservice
  labels:
    app: cartservice
  {{- include "demo.labels" . | nindent 4 }}
spec:
  replicas: {{ .Values.cartservice.replicas }}
  selector:
    matchLabels:
      app: cartservice
    {{- include "demo.selectorLabels" . | nindent 6 }}
  template:
    metadata:
      labels:
        app: cartservice
      {{- include "demo.selectorLabels" . | nindent 8 }}
    spec:
      containers:
      - name: server
        image: {{ .Values.cartservice.server.image.repository }}:{{ .Values.cartservice.server.image.tag | default .Chart.AppVersion }}
        ports:
        - containerPort: 7070
        env:
        - name: REDIS_ADDR
          value: {{ quote .Values.cartservice.server.env.redisAddr }}
        - name: KUBERNETES_CLUSTER_DOMAIN
          value: {{ quote .Values.kubernetesClusterDomain }}
        readinessProbe:
          grpc:
            port: 7070
          initialDelaySeconds: 15
        resources: {{- toYaml .Values.cartservice.server.resources | nindent 10 }}
      serviceAccountName: {{ include "demo.fullname" . }}-cartservice
      terminationGracePeriodSeconds: 30
`

const cartService = `apiVersion: v1
kind: Service
metadata:
  name: {{ include "demo.fullname" . }}-cartservice
  labels:
    app: cartservice
  {{- include "demo.labels" . | nindent 4 }}
spec:
  type: {{ .Values.cartservice.type }}
  selector:
    app: cartservice
  {{- include "demo.selectorLabels" . | nindent 4 }}
  ports:
  {{- .Values.cartservice.ports | toYaml | nindent 2 }}
`

const cartServiceAccount = `apiVersion: v1
kind: ServiceAccount
metadata:
  name: {{ include "demo.fullname" . }}-cartservice
  labels:
    {{- include "demo.labels" . | nindent 4 }}
  annotations:
    eks.amazonaws.com/role-arn: arn:aws:iam::123456789:role/cart
`

var testChart = resource.ChartInfo{Name: "demo", Version: "0.1.0", AppVersion: "v0.10.1"}

func mustParse(t *testing.T, text string) *resource.Resource {
	t.Helper()
	res, err := resource.ParseDocument(text)
	require.NoError(t, err)
	require.NotNil(t, res.Doc)
	return res
}

func cartValues() map[string]any {
	return map[string]any{
		"cartservice": map[string]any{
			"replicas": 1,
			"type":     "ClusterIP",
			"ports": []any{
				map[string]any{"name": "grpc", "port": 7070, "targetPort": 7070},
			},
			"server": map[string]any{
				"image": map[string]any{"repository": "gcr.io/google-samples/microservices-demo/cartservice"},
				"env":   map[string]any{"redisAddr": "redis-cart:6379"},
				"resources": map[string]any{
					"requests": map[string]any{"cpu": "200m", "memory": "64Mi"},
					"limits":   map[string]any{"cpu": "300m", "memory": "128Mi"},
				},
			},
		},
		"kubernetesClusterDomain": "cluster.local",
	}
}

func TestTransformAllCartservice(t *testing.T) {
	svc := &resource.ServiceResources{
		Name:           "cartservice",
		Deployment:     mustParse(t, cartDeployment),
		Service:        mustParse(t, cartService),
		ServiceAccount: mustParse(t, cartServiceAccount),
	}

	result := TransformAll(cartValues(), []*resource.ServiceResources{svc}, testChart)
	require.Empty(t, result.Errors)
	require.Empty(t, result.Skipped)

	cart, ok := result.Values["cartservice"].(map[string]any)
	require.True(t, ok)

	// The flat container entry moves under containers, keyed by the
	// document's container name.
	assert.NotContains(t, cart, "server")
	containers, ok := cart["containers"].(map[string]any)
	require.True(t, ok)
	server, ok := containers["server"].(map[string]any)
	require.True(t, ok)

	assert.Equal(t, map[string]any{
		"repository": "gcr.io/google-samples/microservices-demo/cartservice",
		"tag":        "v0.10.1",
	}, server["image"])

	assert.Equal(t, []any{
		map[string]any{"name": "REDIS_ADDR", "value": "redis-cart:6379"},
		map[string]any{"name": "KUBERNETES_CLUSTER_DOMAIN", "value": "cluster.local"},
	}, server["env"])

	assert.Equal(t, map[string]any{
		"requests": map[string]any{"cpu": "200m", "memory": "64Mi"},
		"limits":   map[string]any{"cpu": "300m", "memory": "128Mi"},
	}, server["resources"])

	assert.Equal(t, []any{map[string]any{"containerPort": 7070}}, server["ports"])

	probe, ok := server["readinessProbe"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 15, probe["initialDelaySeconds"])
	assert.NotContains(t, server, "livenessProbe")

	assert.Equal(t, 1, cart["replicas"])
	assert.Equal(t, true, cart["serviceAccountName"])
	assert.Equal(t, 30, cart["terminationGracePeriodSeconds"])

	// Service fields: the type resolves from values, the ports list is
	// injected through a directive line so the values copy survives.
	assert.Equal(t, "ClusterIP", cart["type"])
	assert.Equal(t, []any{
		map[string]any{"name": "grpc", "port": 7070, "targetPort": 7070},
	}, cart["ports"])
	assert.NotContains(t, cart, "app")

	sa, ok := cart["serviceAccount"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"eks.amazonaws.com/role-arn": "arn:aws:iam::123456789:role/cart",
	}, sa["annotations"])

	assert.Equal(t, "cluster.local", result.Values["kubernetesClusterDomain"])
}

func TestTransformAllDeletesDeadKeys(t *testing.T) {
	deployment := mustParse(t, `apiVersion: apps/v1
kind: Deployment
metadata:
  name: {{ include "demo.fullname" . }}-web
spec:
  template:
    spec:
      containers:
      - name: web
        image: nginx:1.27
`)

	values := map[string]any{
		"web": map[string]any{
			"replicas":    2,
			"hostNetwork": true,
			"affinity":    map[string]any{"nodeAffinity": map[string]any{}},
			"featureFlags": map[string]any{
				"beta": true,
			},
		},
	}

	result := TransformAll(values, []*resource.ServiceResources{{Name: "web", Deployment: deployment}}, testChart)
	require.Empty(t, result.Errors)

	web := result.Values["web"].(map[string]any)

	// Catalog keys the document never renders are dead configuration.
	assert.NotContains(t, web, "replicas")
	assert.NotContains(t, web, "hostNetwork")
	assert.NotContains(t, web, "affinity")

	// Keys outside the catalog are not ours to judge.
	assert.Contains(t, web, "featureFlags")
}

func TestTransformAllTwoContainers(t *testing.T) {
	deployment := mustParse(t, `apiVersion: apps/v1
kind: Deployment
metadata:
  name: {{ include "demo.fullname" . }}-redis-cart
spec:
  template:
    spec:
      containers:
      - name: redis
        image: redis:alpine
        livenessProbe:
          tcpSocket:
            port: 6379
        resources:
          limits:
            memory: 256Mi
      - name: sidecar
        image: gcr.io/example/sidecar:v1.2.3
`)

	values := map[string]any{
		"redisCart": map[string]any{
			"redis": map[string]any{
				"image": map[string]any{"repository": "redis"},
			},
		},
	}

	result := TransformAll(values, []*resource.ServiceResources{{Name: "redis-cart", Deployment: deployment}}, testChart)
	require.Empty(t, result.Errors)

	// The identifier-spelled values key is preserved, never renamed.
	assert.NotContains(t, result.Values, "redis-cart")
	cart, ok := result.Values["redisCart"].(map[string]any)
	require.True(t, ok)

	containers := cart["containers"].(map[string]any)
	redis := containers["redis"].(map[string]any)
	sidecar := containers["sidecar"].(map[string]any)

	assert.Equal(t, map[string]any{"repository": "redis", "tag": "alpine"}, redis["image"])
	assert.Equal(t, map[string]any{"limits": map[string]any{"memory": "256Mi"}}, redis["resources"])
	assert.Contains(t, redis, "livenessProbe")

	assert.Equal(t, map[string]any{"repository": "gcr.io/example/sidecar", "tag": "v1.2.3"}, sidecar["image"])
	assert.NotContains(t, sidecar, "resources")
	assert.NotContains(t, sidecar, "livenessProbe")
}

func TestTransformAllExternalServiceApp(t *testing.T) {
	svc := mustParse(t, `apiVersion: v1
kind: Service
metadata:
  name: {{ include "demo.fullname" . }}-frontend-external
  labels:
    app: frontend
spec:
  type: LoadBalancer
  selector:
    app: frontend
  ports:
  - name: http
    port: 80
    targetPort: 8080
`)

	result := TransformAll(map[string]any{}, []*resource.ServiceResources{{Name: "frontend-external", Service: svc}}, testChart)
	require.Empty(t, result.Errors)

	ext, ok := result.Values["frontend-external"].(map[string]any)
	require.True(t, ok)

	// The selector targets another service's pods; app records that so
	// the shared template does not fall back to the service name.
	assert.Equal(t, "frontend", ext["app"])
	assert.Equal(t, "LoadBalancer", ext["type"])
	assert.Equal(t, []any{
		map[string]any{"name": "http", "port": 80, "targetPort": 8080},
	}, ext["ports"])
}

func TestTransformAllConflictSkipsService(t *testing.T) {
	broken := mustParse(t, `apiVersion: apps/v1
kind: Deployment
metadata:
  name: {{ include "demo.fullname" . }}-broken
spec:
  template:
    spec:
      containers:
      - name: app
        image: {{ .Values.mystery.image.repository }}
`)
	good := mustParse(t, `apiVersion: apps/v1
kind: Deployment
metadata:
  name: {{ include "demo.fullname" . }}-good
spec:
  template:
    spec:
      containers:
      - name: app
        image: nginx:1.27
`)

	values := map[string]any{
		"broken": map[string]any{"replicas": 3},
	}

	result := TransformAll(values, []*resource.ServiceResources{
		{Name: "broken", Deployment: broken},
		{Name: "good", Deployment: good},
	}, testChart)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, []string{"broken"}, result.Skipped)
	assert.ErrorIs(t, result.Errors[0], resource.ErrShapeConflict)

	var ce *ConflictError
	require.ErrorAs(t, result.Errors[0], &ce)
	assert.Equal(t, "broken", ce.Service)

	// The failed subtree stays exactly as it came in.
	assert.Equal(t, map[string]any{"replicas": 3}, result.Values["broken"])

	// The other service still transforms.
	goodValues, ok := result.Values["good"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, goodValues, "containers")
}

func TestTransformAllValuesEntryNotMapping(t *testing.T) {
	deployment := mustParse(t, `apiVersion: apps/v1
kind: Deployment
metadata:
  name: {{ include "demo.fullname" . }}-web
spec:
  template:
    spec:
      containers:
      - name: web
        image: nginx:1.27
`)

	values := map[string]any{"web": "oops"}
	result := TransformAll(values, []*resource.ServiceResources{{Name: "web", Deployment: deployment}}, testChart)

	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], resource.ErrShapeConflict)
	assert.Equal(t, []string{"web"}, result.Skipped)
	assert.Equal(t, "oops", result.Values["web"])
}

func TestTransformAllPlainNamedServiceAccount(t *testing.T) {
	sa := mustParse(t, `apiVersion: v1
kind: ServiceAccount
metadata:
  name: cart-sa
  annotations:
    purpose: checkout
`)

	values := map[string]any{
		"cartservice": map[string]any{
			"serviceAccount": map[string]any{"labels": map[string]any{"team": "cart"}},
		},
	}

	result := TransformAll(values, []*resource.ServiceResources{{Name: "cartservice", ServiceAccount: sa}}, testChart)
	require.Empty(t, result.Errors)

	// A name the fullname helper cannot reproduce renders verbatim, so
	// its values entry must not be touched.
	cart := result.Values["cartservice"].(map[string]any)
	assert.Equal(t, map[string]any{"labels": map[string]any{"team": "cart"}}, cart["serviceAccount"])
}

func TestSubtreeKey(t *testing.T) {
	values := map[string]any{
		"adservice": map[string]any{},
		"redisCart": map[string]any{},
		"loadGen":   map[string]any{},
	}

	tests := []struct {
		name    string
		service string
		want    string
	}{
		{name: "exact match", service: "adservice", want: "adservice"},
		{name: "identifier spelling", service: "redis-cart", want: "redisCart"},
		{name: "identifier with underscore", service: "load_gen", want: "loadGen"},
		{name: "no entry", service: "frontend", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SubtreeKey(values, tt.service))
		})
	}

	t.Run("exact wins over identifier", func(t *testing.T) {
		both := map[string]any{
			"redis-cart": map[string]any{},
			"redisCart":  map[string]any{},
		}
		assert.Equal(t, "redis-cart", SubtreeKey(both, "redis-cart"))
	})
}

func TestSplitImage(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		repo string
		tag  string
	}{
		{name: "repo and tag", ref: "nginx:1.25", repo: "nginx", tag: "1.25"},
		{name: "no tag", ref: "nginx", repo: "nginx", tag: ""},
		{name: "registry path", ref: "gcr.io/proj/img:v2", repo: "gcr.io/proj/img", tag: "v2"},
		{name: "registry port without tag", ref: "localhost:5000/app", repo: "localhost:5000/app", tag: ""},
		{name: "registry port with tag", ref: "localhost:5000/app:v2", repo: "localhost:5000/app", tag: "v2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, tag := splitImage(tt.ref)
			assert.Equal(t, tt.repo, repo)
			assert.Equal(t, tt.tag, tag)
		})
	}
}

func TestResolverScalars(t *testing.T) {
	r := &resolver{
		values: map[string]any{
			"a": map[string]any{"b": "x"},
			"n": 5,
		},
		chart: resource.ChartInfo{Name: "demo", Version: "0.2.0", AppVersion: "v1"},
	}

	tests := []struct {
		name string
		in   string
		want any
	}{
		{name: "values path", in: "{{ .Values.a.b }}", want: "x"},
		{name: "trim markers", in: "{{- .Values.n }}", want: 5},
		{name: "quote function", in: "{{ quote .Values.a.b }}", want: "x"},
		{name: "quote pipe", in: "{{ .Values.a.b | quote }}", want: "x"},
		{name: "default fallback literal", in: `{{ .Values.missing | default "fallback" }}`, want: "fallback"},
		{name: "default fallback number", in: "{{ .Values.missing | default 7 }}", want: 7},
		{name: "default unused", in: `{{ .Values.a.b | default "z" }}`, want: "x"},
		{name: "chart app version", in: "{{ .Chart.AppVersion }}", want: "v1"},
		{name: "chart name", in: "{{ .Chart.Name }}", want: "demo"},
		{name: "unknown function stays literal", in: "{{ .Values.a.b | upper }}", want: "{{ .Values.a.b | upper }}"},
		{name: "missing path stays literal", in: "{{ .Values.missing }}", want: "{{ .Values.missing }}"},
		{name: "plain string untouched", in: "plain", want: "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.data(tt.in))
		})
	}
}

func TestResolverToYaml(t *testing.T) {
	resources := map[string]any{"limits": map[string]any{"cpu": "300m"}}
	r := &resolver{
		values: map[string]any{"svc": map[string]any{"resources": resources}},
		chart:  testChart,
	}

	got := r.data("{{- toYaml .Values.svc.resources | nindent 10 }}")
	assert.Equal(t, resources, got)
}

func TestResolverEmbedded(t *testing.T) {
	r := &resolver{
		values: map[string]any{
			"img": map[string]any{"repo": "nginx"},
			"sub": map[string]any{"tree": map[string]any{"k": "v"}},
		},
		chart: resource.ChartInfo{AppVersion: "v1"},
	}

	out, ok := r.embedded("{{ .Values.img.repo }}:{{ .Values.img.tag | default .Chart.AppVersion }}")
	require.True(t, ok)
	assert.Equal(t, "nginx:v1", out)

	// A reference resolving to a mapping cannot be spliced into text.
	_, ok = r.embedded("prefix-{{ .Values.sub.tree }}")
	assert.False(t, ok)

	_, ok = r.embedded("{{ .Values.missing }}-suffix")
	assert.False(t, ok)
}

func TestResolverDataDoesNotMutate(t *testing.T) {
	r := &resolver{
		values: map[string]any{"a": map[string]any{"b": "x"}},
		chart:  testChart,
	}

	in := map[string]any{
		"k":      "{{ .Values.a.b }}",
		"nested": map[string]any{"k2": "{{ .Values.a.b }}"},
	}

	out := r.data(in).(map[string]any)
	assert.Equal(t, "x", out["k"])
	assert.Equal(t, "x", out["nested"].(map[string]any)["k2"])

	assert.Equal(t, "{{ .Values.a.b }}", in["k"])
	assert.Equal(t, "{{ .Values.a.b }}", in["nested"].(map[string]any)["k2"])
}

func TestConflictError(t *testing.T) {
	err := &ConflictError{
		Service: "cartservice",
		Err:     fmt.Errorf("container %q: %w", "server", resource.ErrShapeConflict),
	}

	assert.ErrorIs(t, err, resource.ErrShapeConflict)
	assert.Contains(t, err.Error(), "service cartservice:")
}
