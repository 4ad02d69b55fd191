package storage

import "github.com/lehigh-university-libraries/gembooth/internal/models"

// Payloads maps photo IDs to their input and output images. It is kept apart
// from the photo records so status changes never copy image bytes.
type Payloads struct {
	inputs  map[string]models.Payload
	outputs map[string]models.Payload
}

func NewPayloads() *Payloads {
	return &Payloads{
		inputs:  make(map[string]models.Payload),
		outputs: make(map[string]models.Payload),
	}
}

func (p *Payloads) Input(id string) (models.Payload, bool) {
	in, ok := p.inputs[id]
	return in, ok
}

func (p *Payloads) Output(id string) (models.Payload, bool) {
	out, ok := p.outputs[id]
	return out, ok
}

// Count returns the number of stored inputs and outputs
func (p *Payloads) Count() (inputs, outputs int) {
	return len(p.inputs), len(p.outputs)
}

func (p *Payloads) setInput(id string, in models.Payload) {
	p.inputs[id] = in
}

func (p *Payloads) setOutput(id string, out models.Payload) {
	p.outputs[id] = out
}

func (p *Payloads) delete(id string) {
	delete(p.inputs, id)
	delete(p.outputs, id)
}
