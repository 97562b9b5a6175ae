package platform

// memoryStore keeps state for the lifetime of the process.
type memoryStore struct {
	state *osState
}

func (m *memoryStore) Load() (*osState, error) {
	if m.state == nil {
		return nil, nil
	}
	return m.state.clone(), nil
}

func (m *memoryStore) Save(st *osState) error {
	m.state = st.clone()
	return nil
}
