// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hmr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/swissjs/swite/services/devserver/datatypes"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		path string
		want datatypes.UpdateType
	}{
		{"/ws/styles/main.css", datatypes.UpdateStyle},
		{"/ws/styles/theme.scss", datatypes.UpdateStyle},
		{"/ws/styles/legacy.sass", datatypes.UpdateStyle},
		{"/ws/app/src/components/Button.tsx", datatypes.UpdateHot},
		{"/ws/app/src/pages/Home.ui", datatypes.UpdateHot},
		{"/ws/packages/ui/components/button.tsx", datatypes.UpdateHot},
		{"/ws/a/b/components/c.ts", datatypes.UpdateHot},
		{"/ws/src/components/nav.uix", datatypes.UpdateHot},
		{"/ws/index.html", datatypes.UpdateReload},
		{"/ws/src/util/helpers.ts", datatypes.UpdateReload},
		{"/ws/package.json", datatypes.UpdateReload},
		{"/ws/components/readme.md", datatypes.UpdateReload},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.path), "path %s", tc.path)
	}
}
