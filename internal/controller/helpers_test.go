package controller

import (
	"log/slog"
	"testing"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	"github.com/podlease/podlease/api/v1alpha1"
	"github.com/podlease/podlease/internal/cluster"
	"github.com/podlease/podlease/internal/manifest"
	"github.com/podlease/podlease/internal/metrics"
)

const (
	testNamespace    = "workloads"
	testNameTemplate = "tw-%s"
	testDefaultImage = "registry.example.com/workload:v1.0.0"
)

func newTestScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(v1alpha1.AddToScheme(scheme))

	return scheme
}

func newFakeClient(funcs *interceptor.Funcs, objects ...client.Object) client.WithWatch {
	builder := fake.NewClientBuilder().
		WithScheme(newTestScheme()).
		WithStatusSubresource(&v1alpha1.TenantWorkload{}).
		WithObjects(objects...)

	if funcs != nil {
		builder = builder.WithInterceptorFuncs(*funcs)
	}

	return builder.Build()
}

func newTestReconciler(t *testing.T, c client.WithWatch) (*Reconciler, *cluster.Gateway) {
	t.Helper()

	gw := cluster.New(c, testNamespace)
	synth := manifest.NewSynthesizer(gw, testDefaultImage, metrics.NewNoopCollector(), slog.Default())

	return NewReconciler(gw, synth, testNameTemplate, metrics.NewNoopCollector(), slog.Default()), gw
}
