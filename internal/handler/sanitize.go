package handler

// cleanObject strips noisy metadata from a raw Kubernetes object map
// before it is written to the stream: metadata.managedFields and the
// kubectl last-applied-configuration annotation.
func cleanObject(obj map[string]any) {
	metadata, ok := obj["metadata"].(map[string]any)
	if !ok {
		return
	}
	delete(metadata, "managedFields")

	annotations, ok := metadata["annotations"].(map[string]any)
	if !ok || len(annotations) == 0 {
		return
	}
	delete(annotations, "kubectl.kubernetes.io/last-applied-configuration")
	if len(annotations) == 0 {
		delete(metadata, "annotations")
	}
}
