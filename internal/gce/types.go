package gce

// Resource shapes for the subset of the compute REST surface this client
// touches. Fields not consumed anywhere are left out on purpose.

// Operation is the handle for any asynchronous mutation. It is returned by
// create/delete calls and consumed by the scope-specific wait endpoints.
type Operation struct {
	Name          string              `json:"name"`
	Status        string              `json:"status"` // PENDING, RUNNING, DONE
	TargetLink    string              `json:"targetLink,omitempty"`
	Error         *OperationErrorList `json:"error,omitempty"`
	HTTPErrorCode int                 `json:"httpErrorStatusCode,omitempty"`
}

// Done reports whether the operation reached a terminal status. A wait call
// may return before that when the platform-side timeout elapses; callers
// re-invoke wait until Done.
func (o *Operation) Done() bool {
	return o.Status == "DONE"
}

// OperationErrorList is the embedded error envelope of a failed operation.
type OperationErrorList struct {
	Errors []OperationErrorItem `json:"errors"`
}

// OperationErrorItem is one entry of an operation's error list.
type OperationErrorItem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Instance is a compute instance resource.
type Instance struct {
	Name              string             `json:"name"`
	MachineType       string             `json:"machineType,omitempty"`
	Zone              string             `json:"zone,omitempty"`
	Status            string             `json:"status,omitempty"`
	SelfLink          string             `json:"selfLink,omitempty"`
	Disks             []AttachedDisk     `json:"disks,omitempty"`
	NetworkInterfaces []NetworkInterface `json:"networkInterfaces,omitempty"`
	Labels            map[string]string  `json:"labels,omitempty"`
	Metadata          *Metadata          `json:"metadata,omitempty"`
}

// EphemeralIP returns the instance's current external address, assigned at
// creation before any static promotion.
func (i *Instance) EphemeralIP() (string, bool) {
	for _, ni := range i.NetworkInterfaces {
		for _, ac := range ni.AccessConfigs {
			if ac.NatIP != "" {
				return ac.NatIP, true
			}
		}
	}
	return "", false
}

// AttachedDisk is a disk attached at instance creation.
type AttachedDisk struct {
	Boot             bool                  `json:"boot,omitempty"`
	AutoDelete       bool                  `json:"autoDelete,omitempty"`
	InitializeParams *DiskInitializeParams `json:"initializeParams,omitempty"`
}

// DiskInitializeParams describes the boot disk source image and size.
type DiskInitializeParams struct {
	SourceImage string `json:"sourceImage,omitempty"`
	DiskSizeGb  string `json:"diskSizeGb,omitempty"`
}

// NetworkInterface is one NIC of an instance.
type NetworkInterface struct {
	Network       string         `json:"network,omitempty"`
	NetworkIP     string         `json:"networkIP,omitempty"`
	AccessConfigs []AccessConfig `json:"accessConfigs,omitempty"`
}

// AccessConfig carries the external (NAT) address of a NIC.
type AccessConfig struct {
	Type  string `json:"type,omitempty"`
	Name  string `json:"name,omitempty"`
	NatIP string `json:"natIP,omitempty"`
}

// Metadata is the instance metadata key/value list.
type Metadata struct {
	Items []MetadataItem `json:"items,omitempty"`
}

// MetadataItem is one metadata entry.
type MetadataItem struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// InstanceList is the response of an instance list call.
type InstanceList struct {
	Items []Instance `json:"items"`
}

// Address is a static external address resource, scoped to a region.
type Address struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Status  string `json:"status,omitempty"` // RESERVING, RESERVED, IN_USE
}

// guestAttributesResponse is the getGuestAttributes payload: a namespace
// query returns the entries below it.
type guestAttributesResponse struct {
	QueryValue *guestAttributesValue `json:"queryValue,omitempty"`
}

type guestAttributesValue struct {
	Items []GuestAttributeEntry `json:"items"`
}

// GuestAttributeEntry is one key/value pair published from inside the guest.
type GuestAttributeEntry struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

// errorResponse is the standard error envelope of a non-2xx response.
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
