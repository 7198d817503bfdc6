package v4l

import (
	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"booth-camera/pkg/ov"
)

// Controls lists the controls the camera at path exposes.
func Controls(path string) ([]ov.Control, error) {
	dev, err := device.Open(path)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	ctrls, err := v4l2.QueryAllExtControls(dev.Fd())
	if err != nil {
		return nil, err
	}
	res := make([]ov.Control, 0, len(ctrls))
	for _, ctrl := range ctrls {
		res = append(res, toControl(ctrl))
	}

	return res, nil
}

func toControl(ctrl v4l2.Control) ov.Control {
	c := ov.Control{
		ID:      ctrl.ID,
		Value:   ctrl.Value,
		Name:    ctrl.Name,
		Minimum: ctrl.Minimum,
		Maximum: ctrl.Maximum,
		Step:    ctrl.Step,
	}
	if ctrl.Type == v4l2.CtrlTypeMenu {
		menus, err := ctrl.GetMenuItems()
		if err != nil {
			logger.Warnf("read menu of %s: %s", ctrl.Name, err)
			return c
		}
		c.IsMenu = true
		for _, m := range menus {
			c.MenuItems = append(c.MenuItems, m.Name)
		}
	}

	return c
}
