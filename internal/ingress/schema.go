package ingress

// APIVersion is the Istio networking API the manifests target.
const APIVersion = "networking.istio.io/v1alpha3"

// Header is the part shared by every Kubernetes object.
type Header struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
}

type Metadata struct {
	Name      string            `yaml:"name"`
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels,omitempty"`
}

// VirtualService routes gateway traffic carrying the pod's routing key to it.
type VirtualService struct {
	Header `yaml:",inline"`
	Spec   VirtualServiceSpec `yaml:"spec"`
}

type VirtualServiceSpec struct {
	Hosts    []string    `yaml:"hosts"`
	Gateways []string    `yaml:"gateways"`
	HTTP     []HTTPRoute `yaml:"http"`
}

type HTTPRoute struct {
	Match []HTTPMatch     `yaml:"match"`
	Route []HTTPRouteDest `yaml:"route"`
}

// HTTPMatch entries are ORed by Istio.
type HTTPMatch struct {
	Headers     map[string]StringMatch `yaml:"headers,omitempty"`
	QueryParams map[string]StringMatch `yaml:"queryParams,omitempty"`
}

type StringMatch struct {
	Exact string `yaml:"exact"`
}

type HTTPRouteDest struct {
	Destination Destination `yaml:"destination"`
}

type Destination struct {
	Host string       `yaml:"host"`
	Port PortSelector `yaml:"port"`
}

type PortSelector struct {
	Number int `yaml:"number"`
}

// ServiceEntry exposes the pod IP to the mesh under a stable host name.
type ServiceEntry struct {
	Header `yaml:",inline"`
	Spec   ServiceEntrySpec `yaml:"spec"`
}

type ServiceEntrySpec struct {
	Hosts      []string   `yaml:"hosts"`
	Location   string     `yaml:"location"`
	Resolution string     `yaml:"resolution"`
	Ports      []Port     `yaml:"ports"`
	Endpoints  []Endpoint `yaml:"endpoints"`
}

type Port struct {
	Number   int    `yaml:"number"`
	Name     string `yaml:"name"`
	Protocol string `yaml:"protocol"`
}

type Endpoint struct {
	Address string `yaml:"address"`
}
