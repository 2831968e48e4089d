package seat

import (
	"github.com/Zubnix/trinity/compositor"
	wl "github.com/Zubnix/trinity/server"
)

// DataDeviceManager is the wl_data_device_manager global. It keeps
// track of offered data and of the seat's selection. Transfers
// themselves are not brokered.
type DataDeviceManager struct {
	seat      *Seat
	devices   wl.ResourceSet
	selection *DataSource
}

func newDataDeviceManager(seat *Seat) *DataDeviceManager {
	m := DataDeviceManager{seat: seat}
	seat.server.AddGlobal(wl.DataDeviceManagerInterface, wl.DataDeviceManagerVersion, m.bind)
	seat.keyboard.OnFocus(m.sendSelection)
	return &m
}

func (m *DataDeviceManager) bind(client *wl.Client, version, id uint32) error {
	_, err := client.NewResource(wl.DataDeviceManagerInterface, version, id, m)
	return err
}

func (m *DataDeviceManager) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.DataDeviceManagerCreateDataSource:
		src := DataSource{manager: m}
		sr, err := r.Client().NewResource(wl.DataSourceInterface, r.Version(), req.ID, &src)
		if err != nil {
			return err
		}
		src.resource = sr
		sr.OnDestroy(func(*wl.Resource) { m.sourceDestroyed(&src) })
		return nil

	case wl.DataDeviceManagerGetDataDevice:
		_, err := m.devices.Create(r.Client(), wl.DataDeviceInterface, r.Version(), req.ID, dataDevice{manager: m})
		return err

	default:
		return wl.UnknownRequest(r, req)
	}
}

// Selection returns the current selection source, if any.
func (m *DataDeviceManager) Selection() (*DataSource, bool) {
	return m.selection, m.selection != nil
}

func (m *DataDeviceManager) setSelection(src *DataSource) {
	if src == m.selection {
		return
	}
	if old := m.selection; old != nil {
		wl.DataSourceCancelled(old.resource)
	}
	m.selection = src

	if s, ok := m.seat.keyboard.Focus(); ok {
		m.sendSelection(s)
	}
}

// sendSelection tells the client of s about the selection. Offers are
// not created, so the client always sees an empty selection.
func (m *DataDeviceManager) sendSelection(s *compositor.Surface) {
	if s == nil {
		return
	}
	for _, r := range m.devices.ForClient(s.Client()) {
		wl.DataDeviceSelection(r)
	}
}

func (m *DataDeviceManager) sourceDestroyed(src *DataSource) {
	if m.selection == src {
		m.selection = nil
		if s, ok := m.seat.keyboard.Focus(); ok {
			m.sendSelection(s)
		}
	}
}

// DataSource is a wl_data_source.
type DataSource struct {
	manager   *DataDeviceManager
	resource  *wl.Resource
	mimeTypes []string
	actions   uint32
}

func (src *DataSource) MimeTypes() []string {
	return src.mimeTypes
}

func (src *DataSource) Actions() uint32 {
	return src.actions
}

func (src *DataSource) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.DataSourceOffer:
		src.mimeTypes = append(src.mimeTypes, req.MimeType)
		return nil

	case wl.DataSourceDestroy:
		r.Destroy()
		return nil

	case wl.DataSourceSetActions:
		src.actions = req.Actions
		return nil

	default:
		return wl.UnknownRequest(r, req)
	}
}

// dataDevice implements wl_data_device.
type dataDevice struct {
	manager *DataDeviceManager
}

func (dev dataDevice) Handle(r *wl.Resource, req wl.Request) error {
	switch req := req.(type) {
	case wl.DataDeviceStartDrag:
		dev.manager.seat.log.Debug("drag and drop is not supported")
		return nil

	case wl.DataDeviceSetSelection:
		if req.Source == nil {
			dev.manager.setSelection(nil)
			return nil
		}
		src, ok := wl.Impl[*DataSource](req.Source)
		if !ok {
			return nil
		}
		dev.manager.setSelection(src)
		return nil

	case wl.DataDeviceRelease:
		r.Destroy()
		return nil

	default:
		return wl.UnknownRequest(r, req)
	}
}
