// Package all registers every domain generator.
package all

import (
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/generators/creditcard"
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/generators/financial"
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/generators/loanrisk"
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/generators/marketing"
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/generators/tax"
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/generators/techmetrics"
)
