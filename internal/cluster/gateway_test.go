package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/apimachinery/pkg/watch"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/podlease/podlease/api/v1alpha1"
)

const testNamespace = "workloads"

func newTestGateway(t *testing.T, objects ...client.Object) *Gateway {
	t.Helper()

	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(v1alpha1.AddToScheme(scheme))

	fakeClient := fake.NewClientBuilder().
		WithScheme(scheme).
		WithStatusSubresource(&v1alpha1.TenantWorkload{}).
		WithObjects(objects...).
		Build()

	return New(fakeClient, testNamespace)
}

func simplePod(name string, labels map[string]string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNamespace, Labels: labels},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{Name: "workload", Image: "img"}},
		},
	}
}

func simpleRecord(name string) *v1alpha1.TenantWorkload {
	return &v1alpha1.TenantWorkload{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNamespace},
		Spec:       v1alpha1.TenantWorkloadSpec{TenantID: "abcd1234"},
	}
}

func TestGetPod_AbsentIsNilNil(t *testing.T) {
	t.Parallel()

	gw := newTestGateway(t)

	pod, err := gw.GetPod(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, pod)
}

func TestCreatePod_ConflictIsRecognizable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := newTestGateway(t, simplePod("tw-abcd1234", nil))

	err := gw.CreatePod(ctx, simplePod("tw-abcd1234", nil))
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
}

func TestDeletePod_NotFoundIsRecognizable(t *testing.T) {
	t.Parallel()

	err := newTestGateway(t).DeletePod(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestListPodsByLabel_FiltersSelector(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := newTestGateway(t,
		simplePod("labeled", map[string]string{"podlease.dev/role": "workload"}),
		simplePod("unlabeled", nil),
	)

	pods, err := gw.ListPodsByLabel(ctx, map[string]string{"podlease.dev/role": "workload"})
	require.NoError(t, err)
	require.Len(t, pods.Items, 1)
	assert.Equal(t, "labeled", pods.Items[0].Name)
}

func TestGetRecord_AbsentIsNilNil(t *testing.T) {
	t.Parallel()

	record, err := newTestGateway(t).GetRecord(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestCreateRecord_ConflictIsRecognizable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := newTestGateway(t, simpleRecord("tw-abcd1234"))

	err := gw.CreateRecord(ctx, simpleRecord("tw-abcd1234"))
	require.Error(t, err)
	assert.True(t, IsConflict(err))
}

func TestPatchRecordStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	record := simpleRecord("tw-abcd1234")
	gw := newTestGateway(t, record)

	status := v1alpha1.TenantWorkloadStatus{
		PodName:      "tw-abcd1234",
		Phase:        v1alpha1.WorkloadPhaseCreating,
		LastActivity: metav1.Now(),
	}

	require.NoError(t, gw.PatchRecordStatus(ctx, record, status))

	fresh, err := gw.GetRecord(ctx, "tw-abcd1234")
	require.NoError(t, err)
	assert.Equal(t, "tw-abcd1234", fresh.Status.PodName)
	assert.Equal(t, v1alpha1.WorkloadPhaseCreating, fresh.Status.Phase)
}

func TestDeleteRecord_NotFoundIsRecognizable(t *testing.T) {
	t.Parallel()

	err := newTestGateway(t).DeleteRecord(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestWatchRecords_DeliversAddEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := newTestGateway(t)

	stream, err := gw.WatchRecords(ctx)
	require.NoError(t, err)

	defer stream.Stop()

	require.NoError(t, gw.CreateRecord(ctx, simpleRecord("tw-abcd1234")))

	select {
	case event := <-stream.ResultChan():
		assert.Equal(t, watch.Added, event.Type)

		record, ok := event.Object.(*v1alpha1.TenantWorkload)
		require.True(t, ok)
		assert.Equal(t, "tw-abcd1234", record.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("no watch event delivered")
	}
}
