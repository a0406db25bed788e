// Package ingress renders the Istio objects that route gateway traffic to a
// single shard pod and hands them to an applier through the filesystem.
package ingress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	// RoutingHeader carries the target shard ID on gateway requests.
	RoutingHeader = "x-routing-key"
	// RoutingQueryParam is the query fallback for clients that cannot set headers.
	RoutingQueryParam = "routingKey"

	DefaultNamespace = "default"
	DefaultDomain    = "*"
	DefaultGateway   = "istio-system/istio-ingressgateway"
)

// Options describes the pod the manifests are rendered for.
type Options struct {
	PodID     string
	PodIP     string
	Port      int
	Namespace string
	Domain    string
	Gateway   string
}

func (o Options) withDefaults() Options {
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	if o.Domain == "" {
		o.Domain = DefaultDomain
	}
	if o.Gateway == "" {
		o.Gateway = DefaultGateway
	}
	return o
}

func (o Options) validate() error {
	var errs []error
	if o.PodID == "" {
		errs = append(errs, errors.New("pod id is required"))
	}
	if o.PodIP == "" {
		errs = append(errs, errors.New("pod ip is required"))
	}
	if o.Port <= 0 {
		errs = append(errs, fmt.Errorf("invalid port %d", o.Port))
	}
	return errors.Join(errs...)
}

// VirtualServiceName returns the VirtualService name for podID.
func VirtualServiceName(podID string) string {
	return "pods-" + podID + "-virtual-service"
}

// ServiceEntryName returns the ServiceEntry name for podID.
func ServiceEntryName(podID string) string {
	return "pods-" + podID + "-service-entry"
}

// EntryHost is the mesh-internal host name the ServiceEntry registers.
func EntryHost(podID, namespace string) string {
	return podID + "." + namespace + ".pods.internal"
}

// Build returns the typed manifests for opts.
func Build(opts Options) (*VirtualService, *ServiceEntry, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid ingress options: %w", err)
	}

	labels := map[string]string{
		"app.kubernetes.io/managed-by": "roomshard",
		"roomrouter/pod":               opts.PodID,
	}
	host := EntryHost(opts.PodID, opts.Namespace)

	vs := &VirtualService{
		Header: Header{
			APIVersion: APIVersion,
			Kind:       "VirtualService",
			Metadata: Metadata{
				Name:      VirtualServiceName(opts.PodID),
				Namespace: opts.Namespace,
				Labels:    labels,
			},
		},
		Spec: VirtualServiceSpec{
			Hosts:    []string{opts.Domain},
			Gateways: []string{opts.Gateway},
			HTTP: []HTTPRoute{{
				Match: []HTTPMatch{
					{Headers: map[string]StringMatch{RoutingHeader: {Exact: opts.PodID}}},
					{QueryParams: map[string]StringMatch{RoutingQueryParam: {Exact: opts.PodID}}},
				},
				Route: []HTTPRouteDest{{
					Destination: Destination{Host: host, Port: PortSelector{Number: opts.Port}},
				}},
			}},
		},
	}

	se := &ServiceEntry{
		Header: Header{
			APIVersion: APIVersion,
			Kind:       "ServiceEntry",
			Metadata: Metadata{
				Name:      ServiceEntryName(opts.PodID),
				Namespace: opts.Namespace,
				Labels:    labels,
			},
		},
		Spec: ServiceEntrySpec{
			Hosts:      []string{host},
			Location:   "MESH_INTERNAL",
			Resolution: "STATIC",
			Ports:      []Port{{Number: opts.Port, Name: "http", Protocol: "HTTP"}},
			Endpoints:  []Endpoint{{Address: opts.PodIP}},
		},
	}

	return vs, se, nil
}

// Render serialises the VirtualService and ServiceEntry as one multi-document
// YAML stream.
func Render(opts Options) ([]byte, error) {
	vs, se, err := Build(opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, doc := range []any{vs, se} {
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode manifest: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush manifests: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse reads back the object headers of a rendered stream, in order.
func Parse(data []byte) ([]Header, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var headers []Header
	for {
		var h Header
		err := dec.Decode(&h)
		if errors.Is(err, io.EOF) {
			return headers, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse manifests: %w", err)
		}
		headers = append(headers, h)
	}
}
