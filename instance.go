package dieseltri

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

var (
	appVersion = vk.MakeVersion(1, 0, 0)
	apiVersion = vk.MakeVersion(1, 0, 0)
)

type vkPlatform struct {
	instance      vk.Instance
	surface       vk.Surface
	debugCallback vk.DebugReportCallback
	layers        []string
	candidates    []*PhysicalDeviceCandidate
}

// NewVulkanPlatform creates the Vulkan instance and the window surface.
// The loader must be set up by the window before this is called.
func NewVulkanPlatform(cfg *Config, win Window) (_ Platform, err error) {
	defer checkErr(&err)

	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vulkan loader")
	}

	actual, err := instanceExtensionNames()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate instance extensions")
	}
	required, wanted := cfg.instanceExtensions(win.RequiredInstanceExtensions())
	exts := NewExtensionSet(safeStrings(wanted), safeStrings(required), actual)
	if ok, missing := exts.HasRequired(); !ok {
		return nil, errors.Errorf("missing instance extensions %v", missing)
	}
	if ok, missing := exts.HasWanted(); !ok {
		Logger().Warn("instance extensions unavailable", "missing", missing)
	}
	enabled := exts.Enabled()

	p := &vkPlatform{}
	if cfg.Debug {
		available, err := validationLayerNames()
		if err != nil {
			return nil, errors.Wrap(err, "enumerate validation layers")
		}
		var missing int
		p.layers, missing = checkExisting(available, safeStrings(cfg.ValidationLayers))
		if missing > 0 {
			Logger().Warn("validation layers unavailable", "missing", missing, "wanted", cfg.ValidationLayers)
		}
	}

	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(apiVersion),
			ApplicationVersion: uint32(appVersion),
			PApplicationName:   safeString(cfg.Title),
			PEngineName:        safeString("dieseltri"),
		},
		EnabledExtensionCount:   uint32(len(enabled)),
		PpEnabledExtensionNames: enabled,
		EnabledLayerCount:       uint32(len(p.layers)),
		PpEnabledLayerNames:     p.layers,
	}, nil, &p.instance)
	if err := NewError(ret); err != nil {
		return nil, errors.Wrap(err, "create instance")
	}
	if err := vk.InitInstance(p.instance); err != nil {
		p.Destroy()
		return nil, errors.Wrap(err, "load instance functions")
	}
	Logger().Info("vulkan instance created", "extensions", len(enabled), "layers", len(p.layers))

	if cfg.Debug && contains(enabled, vk.ExtDebugReportExtensionName) {
		ret := vk.CreateDebugReportCallback(p.instance, &vk.DebugReportCallbackCreateInfo{
			SType: vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
				vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugReport,
		}, nil, &p.debugCallback)
		if err := NewError(ret); err != nil {
			Logger().Warn("debug report callback unavailable", "err", err)
		}
	}

	if p.surface, err = win.CreateSurface(p.instance); err != nil {
		p.Destroy()
		return nil, errors.Wrap(err, "create window surface")
	}
	return p, nil
}

func (p *vkPlatform) Devices() ([]*PhysicalDeviceCandidate, error) {
	if p.candidates != nil {
		return p.candidates, nil
	}
	var count uint32
	if err := NewError(vk.EnumeratePhysicalDevices(p.instance, &count, nil)); err != nil {
		return nil, errors.Wrap(err, "enumerate physical devices")
	}
	gpus := make([]vk.PhysicalDevice, count)
	if err := NewError(vk.EnumeratePhysicalDevices(p.instance, &count, gpus)); err != nil {
		return nil, errors.Wrap(err, "enumerate physical devices")
	}

	candidates := make([]*PhysicalDeviceCandidate, 0, count)
	for i, gpu := range gpus[:count] {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(gpu, &props)
		props.Deref()

		var familyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &familyCount, nil)
		families := make([]vk.QueueFamilyProperties, familyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &familyCount, families)

		c := &PhysicalDeviceCandidate{
			Index:  i,
			Name:   vk.ToString(props.DeviceName[:]),
			Handle: gpu,
		}
		for j := range families[:familyCount] {
			families[j].Deref()
			c.Families = append(c.Families, QueueFamily{
				Index: uint32(j),
				Flags: families[j].QueueFlags,
				Count: families[j].QueueCount,
			})
		}
		Logger().Debug("physical device", "index", i, "name", c.Name, "queue_families", len(c.Families))
		candidates = append(candidates, c)
	}
	p.candidates = candidates
	return candidates, nil
}

func (p *vkPlatform) SurfaceSupported(c *PhysicalDeviceCandidate, family uint32) (bool, error) {
	var supported vk.Bool32
	ret := vk.GetPhysicalDeviceSurfaceSupport(c.Handle, family, p.surface, &supported)
	if err := NewError(ret); err != nil {
		return false, err
	}
	return supported.B(), nil
}

func (p *vkPlatform) DeviceExtensions(c *PhysicalDeviceCandidate) ([]string, error) {
	return deviceExtensionNames(c.Handle)
}

func (p *vkPlatform) SurfaceSupport(c *PhysicalDeviceCandidate) (*SurfaceSupport, error) {
	return querySurfaceSupport(c.Handle, p.surface)
}

func (p *vkPlatform) CreateDevice(c *PhysicalDeviceCandidate, info DeviceCreateInfo) (Device, error) {
	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(info.QueueFamilies))
	for _, family := range info.QueueFamilies {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}
	extensions := safeStrings(info.Extensions)
	layers, _ := checkExisting(p.layers, safeStrings(info.Layers))

	var handle vk.Device
	ret := vk.CreateDevice(c.Handle, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &handle)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	return newVkDevice(handle, c, p.surface, info.QueueFamilies)
}

func (p *vkPlatform) Destroy() {
	if p.surface != vk.NullSurface {
		vk.DestroySurface(p.instance, p.surface, nil)
		p.surface = vk.NullSurface
	}
	if p.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(p.instance, p.debugCallback, nil)
		p.debugCallback = vk.NullDebugReportCallback
	}
	if p.instance != nil {
		vk.DestroyInstance(p.instance, nil)
		p.instance = nil
	}
}

func querySurfaceSupport(gpu vk.PhysicalDevice, surface vk.Surface) (*SurfaceSupport, error) {
	var s SurfaceSupport
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(gpu, surface, &s.Capabilities)
	if err := NewError(ret); err != nil {
		return nil, errors.Wrap(err, "surface capabilities")
	}
	s.Capabilities.Deref()
	s.Capabilities.CurrentExtent.Deref()
	s.Capabilities.MinImageExtent.Deref()
	s.Capabilities.MaxImageExtent.Deref()

	var count uint32
	if err := NewError(vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, nil)); err != nil {
		return nil, errors.Wrap(err, "surface formats")
	}
	s.Formats = make([]vk.SurfaceFormat, count)
	if err := NewError(vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, s.Formats)); err != nil {
		return nil, errors.Wrap(err, "surface formats")
	}
	s.Formats = s.Formats[:count]
	for i := range s.Formats {
		s.Formats[i].Deref()
	}

	if err := NewError(vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, nil)); err != nil {
		return nil, errors.Wrap(err, "present modes")
	}
	s.PresentModes = make([]vk.PresentMode, count)
	if err := NewError(vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, s.PresentModes)); err != nil {
		return nil, errors.Wrap(err, "present modes")
	}
	s.PresentModes = s.PresentModes[:count]
	return &s, nil
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if trimString(s) == trimString(name) {
			return true
		}
	}
	return false
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	l := Logger().With("layer", pLayerPrefix, "code", messageCode)
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		l.Error(pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		l.Warn(pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		l.Warn(pMessage, "performance", true)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		l.Debug(pMessage)
	default:
		l.Info(pMessage)
	}
	return vk.Bool32(vk.False)
}
