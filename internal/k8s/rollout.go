package k8s

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// RolloutStatus implements reconcile.Cluster: it reports whether the named
// workload has rolled out completely, with a short description of the observed
// state. Unknown workloads report not ready rather than an error so callers
// can keep polling while the object is still being created.
func (c *Client) RolloutStatus(ctx context.Context, kind, namespace, name string) (bool, string, error) {
	switch kind {
	case "Deployment":
		deployment, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, fmt.Sprintf("deployment %s/%s not found", namespace, name), nil
		}
		return deploymentStatus(deployment)
	case "StatefulSet":
		sts, err := c.clientset.AppsV1().StatefulSets(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, fmt.Sprintf("statefulset %s/%s not found", namespace, name), nil
		}
		return statefulSetStatus(sts)
	case "DaemonSet":
		ds, err := c.clientset.AppsV1().DaemonSets(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, fmt.Sprintf("daemonset %s/%s not found", namespace, name), nil
		}
		return daemonSetStatus(ds)
	case "Job":
		job, err := c.clientset.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, fmt.Sprintf("job %s/%s not found", namespace, name), nil
		}
		return jobStatus(job)
	default:
		return false, "", fmt.Errorf("unsupported rollout kind %q", kind)
	}
}

// PodsRunning reports whether at least one pod matching the label selector is
// in the Running phase. Some workloads (an uninitialized Vault) run without
// ever passing their readiness probe, so Running is the strongest signal
// available before initialization.
func (c *Client) PodsRunning(ctx context.Context, namespace, labelSelector string) (bool, string, error) {
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return false, "", fmt.Errorf("failed to list pods: %w", err)
	}

	if len(pods.Items) == 0 {
		return false, fmt.Sprintf("no pods match %s in %s", labelSelector, namespace), nil
	}

	running := 0
	for _, pod := range pods.Items {
		if pod.Status.Phase == corev1.PodRunning {
			running++
		}
	}
	if running == 0 {
		return false, fmt.Sprintf("0/%d pods running", len(pods.Items)), nil
	}
	return true, fmt.Sprintf("%d/%d pods running", running, len(pods.Items)), nil
}

func deploymentStatus(deployment *appsv1.Deployment) (bool, string, error) {
	desired := int32(1)
	if deployment.Spec.Replicas != nil {
		desired = *deployment.Spec.Replicas
	}

	status := deployment.Status
	detail := fmt.Sprintf("%d/%d replicas available", status.AvailableReplicas, desired)

	if status.UpdatedReplicas != desired || status.AvailableReplicas != desired {
		return false, detail, nil
	}
	for _, condition := range deployment.Status.Conditions {
		if condition.Type == appsv1.DeploymentAvailable && condition.Status == corev1.ConditionTrue {
			return true, detail, nil
		}
	}
	return false, detail, nil
}

func statefulSetStatus(sts *appsv1.StatefulSet) (bool, string, error) {
	desired := int32(1)
	if sts.Spec.Replicas != nil {
		desired = *sts.Spec.Replicas
	}

	detail := fmt.Sprintf("%d/%d replicas ready", sts.Status.ReadyReplicas, desired)
	ready := sts.Status.UpdatedReplicas == desired && sts.Status.ReadyReplicas == desired
	return ready, detail, nil
}

func daemonSetStatus(ds *appsv1.DaemonSet) (bool, string, error) {
	detail := fmt.Sprintf("%d/%d pods ready", ds.Status.NumberReady, ds.Status.DesiredNumberScheduled)
	ready := ds.Status.DesiredNumberScheduled > 0 &&
		ds.Status.NumberReady == ds.Status.DesiredNumberScheduled
	return ready, detail, nil
}

func jobStatus(job *batchv1.Job) (bool, string, error) {
	for _, condition := range job.Status.Conditions {
		if condition.Type == batchv1.JobFailed && condition.Status == corev1.ConditionTrue {
			return false, fmt.Sprintf("job failed: %s", condition.Message), nil
		}
	}
	detail := fmt.Sprintf("%d succeeded", job.Status.Succeeded)
	return job.Status.Succeeded > 0, detail, nil
}
