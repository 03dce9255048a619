package driver

import (
	"context"
	"fmt"
	"io"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
)

// pullImage pulls img and drains the progress stream to completion. Errors
// reported inside the stream (e.g. unknown manifest) fail the pull.
func pullImage(ctx context.Context, docker client.APIClient, img string) error {
	resp, err := docker.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer resp.Close()
	if err := jsonmessage.DisplayJSONMessagesStream(resp, io.Discard, 0, false, nil); err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	return nil
}

// forceRemove removes a container whether or not it is running. A missing
// container counts as success.
func forceRemove(ctx context.Context, docker client.APIClient, name string) error {
	err := docker.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %s: %w", name, err)
	}
	return nil
}

// createAndStart creates the named container and starts it.
func createAndStart(
	ctx context.Context,
	docker client.APIClient,
	name string,
	containerCfg *container.Config,
	hostCfg *container.HostConfig,
) error {
	resp, err := docker.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return fmt.Errorf("create container %s: %w", name, err)
	}
	id := resp.ID
	if id == "" {
		id = name
	}
	if err := docker.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %s: %w", name, err)
	}
	return nil
}
