// Package kubernetes provides a Provisioner implementation that manages
// sandbox pods through agent-sandbox SandboxClaim CRDs.
package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	sandboxv1alpha1 "sigs.k8s.io/agent-sandbox/api/v1alpha1"
	extensionsv1alpha1 "sigs.k8s.io/agent-sandbox/extensions/api/v1alpha1"

	"github.com/fragmentd/fragmentd/pkg/api"
	"github.com/fragmentd/fragmentd/pkg/sandbox"
)

// Ensure ClaimProvisioner implements Provisioner.
var _ sandbox.Provisioner = (*ClaimProvisioner)(nil)

// ClaimProvisioner provisions sandboxes by creating SandboxClaim CRDs. Each
// template ID maps to a SandboxTemplate resource of the same name; the claim
// name doubles as the sandbox ID, so Lookup can resolve a runner URL from an
// ID alone.
type ClaimProvisioner struct {
	client    client.Client
	namespace string
	timeout   time.Duration
}

// NewClaimProvisioner creates a ClaimProvisioner from configuration.
func NewClaimProvisioner(c client.Client, namespace string, timeout time.Duration) *ClaimProvisioner {
	return &ClaimProvisioner{
		client:    c,
		namespace: namespace,
		timeout:   timeout,
	}
}

// NewScheme returns a runtime.Scheme with the agent-sandbox types registered.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := sandboxv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register sandbox types: %w", err)
	}
	if err := extensionsv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register extensions types: %w", err)
	}
	return scheme, nil
}

// Provision creates a SandboxClaim for the template, waits for the Sandbox
// to become ready, and returns the claim name as the sandbox ID plus the
// runner URL (http://<serviceFQDN>:8080). The release function deletes the
// claim.
func (p *ClaimProvisioner) Provision(ctx context.Context, template api.TemplateID) (string, string, func(), error) {
	claimName := generateClaimNameFn()

	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      claimName,
			Namespace: p.namespace,
		},
		Spec: extensionsv1alpha1.SandboxClaimSpec{
			TemplateRef: extensionsv1alpha1.SandboxTemplateRef{
				Name: string(template),
			},
		},
	}

	if err := p.client.Create(ctx, claim); err != nil {
		return "", "", nil, fmt.Errorf("create SandboxClaim %q: %w", claimName, err)
	}

	slog.Debug("created SandboxClaim", "name", claimName, "namespace", p.namespace, "template", template)

	serviceFQDN, err := p.waitForReady(ctx, claimName)
	if err != nil {
		// Clean up the claim on error.
		p.deleteClaim(context.Background(), claimName)
		return "", "", nil, err
	}

	runnerURL := fmt.Sprintf("http://%s:8080", serviceFQDN)

	release := func() {
		p.deleteClaim(context.Background(), claimName)
	}

	slog.Debug("sandbox provisioned", "name", claimName, "url", runnerURL)
	return claimName, runnerURL, release, nil
}

// Lookup resolves the runner URL for an existing sandbox by its claim name.
func (p *ClaimProvisioner) Lookup(ctx context.Context, id string) (string, error) {
	sbx := &sandboxv1alpha1.Sandbox{}
	key := types.NamespacedName{Name: id, Namespace: p.namespace}
	if err := p.client.Get(ctx, key, sbx); err != nil {
		return "", api.NewNotFoundError("sandbox " + id + " not found")
	}
	if !isReady(sbx) || sbx.Status.ServiceFQDN == "" {
		return "", api.NewNotFoundError("sandbox " + id + " is not ready")
	}
	return fmt.Sprintf("http://%s:8080", sbx.Status.ServiceFQDN), nil
}

// waitForReady polls the Sandbox resource until its Ready condition is True
// or the timeout expires.
func (p *ClaimProvisioner) waitForReady(ctx context.Context, sandboxName string) (string, error) {
	deadline := time.After(p.timeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context cancelled waiting for Sandbox %q: %w", sandboxName, ctx.Err())
		case <-deadline:
			return "", fmt.Errorf("timeout waiting for Sandbox %q to become ready (waited %s)", sandboxName, p.timeout)
		case <-ticker.C:
			sbx := &sandboxv1alpha1.Sandbox{}
			key := types.NamespacedName{Name: sandboxName, Namespace: p.namespace}
			if err := p.client.Get(ctx, key, sbx); err != nil {
				// Sandbox may not exist yet (controller hasn't created it). Keep polling.
				slog.Debug("waiting for Sandbox", "name", sandboxName, "error", err.Error())
				continue
			}

			if isReady(sbx) {
				if sbx.Status.ServiceFQDN == "" {
					continue // Ready but FQDN not yet populated.
				}
				return sbx.Status.ServiceFQDN, nil
			}
		}
	}
}

// isReady checks if the Sandbox has a Ready condition set to True.
func isReady(sbx *sandboxv1alpha1.Sandbox) bool {
	for _, c := range sbx.Status.Conditions {
		if c.Type == string(sandboxv1alpha1.SandboxConditionReady) && c.Status == metav1.ConditionTrue {
			return true
		}
	}
	return false
}

// deleteClaim deletes a SandboxClaim. Errors are logged but not returned
// since this is called from release functions and cleanup paths.
func (p *ClaimProvisioner) deleteClaim(ctx context.Context, name string) {
	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: p.namespace,
		},
	}
	if err := p.client.Delete(ctx, claim); err != nil {
		slog.Warn("failed to delete SandboxClaim", "name", name, "namespace", p.namespace, "error", err.Error())
		return
	}
	slog.Debug("deleted SandboxClaim", "name", name, "namespace", p.namespace)
}

// generateClaimNameFn creates a unique name for a SandboxClaim.
// Replaceable in tests for deterministic naming.
var generateClaimNameFn = func() string {
	return fmt.Sprintf("fragmentd-sbx-%d", time.Now().UnixNano())
}
