package commands

import (
	"context"
	"emsp/entity"
	"emsp/ocpi"
	"emsp/utility"
	"errors"
	"fmt"
)

var ErrCommandFailed = errors.New("command not accepted by the CPO")

// Sender delivers a request body to a CPO endpoint.
type Sender interface {
	Post(ctx context.Context, endpoint string, data any) (*ocpi.Response, []byte, error)
}

type Dispatcher struct {
	store        *Store
	sender       Sender
	responseBase string
}

// NewDispatcher sends commands through sender; results are expected under
// responseBase + "/commands/{TYPE}/{id}".
func NewDispatcher(store *Store, sender Sender, responseBase string) *Dispatcher {
	return &Dispatcher{
		store:        store,
		sender:       sender,
		responseBase: responseBase,
	}
}

// Dispatch registers the command and sends it to the CPO. The command stays registered
// only when the CPO accepted it; the returned id is valid in either case.
func (d *Dispatcher) Dispatch(ctx context.Context, t entity.CommandType, req entity.CommandRequest, requester string) (string, *entity.CommandResponse, error) {
	id := utility.NewUUID()
	req.SetResponseUrl(fmt.Sprintf("%s/commands/%s/%s", d.responseBase, t, id))
	if err := entity.Validate(req); err != nil {
		return id, nil, err
	}
	err := d.store.Register(Command{
		Id:        id,
		Type:      t,
		Request:   req,
		Requester: requester,
	})
	if err != nil {
		return id, nil, err
	}

	response, err := d.send(ctx, t, req)
	if err != nil {
		d.store.Remove(id)
		return id, nil, err
	}
	if response.Result != entity.CommandAccepted {
		d.store.Remove(id)
	}
	return id, response, nil
}

func (d *Dispatcher) send(ctx context.Context, t entity.CommandType, req entity.CommandRequest) (*entity.CommandResponse, error) {
	envelope, data, err := d.sender.Post(ctx, "/commands/"+string(t), req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommandFailed, err)
	}
	if envelope.StatusCode != ocpi.StatusSuccess {
		return nil, fmt.Errorf("%w: status %d %s", ErrCommandFailed, envelope.StatusCode, envelope.StatusMessage)
	}
	var response entity.CommandResponse
	if err = utility.Json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrCommandFailed, err)
	}
	if response.Result == "" {
		return nil, fmt.Errorf("%w: empty result", ErrCommandFailed)
	}
	return &response, nil
}
