package authorize

import (
	"context"
	"emsp/entity"
	"emsp/ocpi"
	"emsp/ocpi/client"
	"emsp/utility"
	"fmt"
)

const authorizeEndpoint = "/authorize"

// Remote asks an external decision service, which answers with an OCPI
// envelope carrying an AuthorizationInfo.
type Remote struct {
	client *client.Client
}

func NewRemote(client *client.Client) *Remote {
	return &Remote{
		client: client,
	}
}

func (r *Remote) Authorize(ctx context.Context, req *Request) (*entity.AuthorizationInfo, error) {
	envelope, data, err := r.client.Post(ctx, authorizeEndpoint, req)
	if err != nil {
		return nil, err
	}
	if envelope.StatusCode != ocpi.StatusSuccess {
		return nil, fmt.Errorf("decision service answered %d: %s", envelope.StatusCode, envelope.StatusMessage)
	}
	info := &entity.AuthorizationInfo{}
	if err = utility.Json.Unmarshal(data, info); err != nil {
		return nil, fmt.Errorf("decoding decision: %w", err)
	}
	return info, nil
}
